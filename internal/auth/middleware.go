package auth

import (
	"log/slog"
	"net/http"

	errors "github.com/frahmantamala/merchant-settlement/internal"
	"github.com/frahmantamala/merchant-settlement/internal/transport"
	"github.com/frahmantamala/merchant-settlement/pkg/logger"
)

// Authenticator puts the verified principal on the request context and
// enforces role requirements for the routes that need them.
type Authenticator struct {
	*transport.BaseHandler
	verifier TokenVerifier
	logger   *slog.Logger
}

func NewAuthenticator(verifier TokenVerifier, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		BaseHandler: transport.NewBaseHandler(logger),
		verifier:    verifier,
		logger:      logger,
	}
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := a.ExtractTokenFromHeader(r)
		if token == "" {
			a.HandleError(w, errors.ErrAuthRequired)
			return
		}

		claims, err := a.verifier.Verify(token)
		if err != nil {
			a.logger.WarnContext(r.Context(), "token verification failed", "error", err, "path", r.URL.Path)
			a.HandleServiceError(w, err)
			return
		}

		principal := claims.Principal()
		ctx := errors.ContextWithPrincipal(r.Context(), principal)
		ctx = logger.With(ctx, "user_id", principal.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole rejects principals whose role is not one of roles.
func (a *Authenticator) RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := errors.PrincipalFromContext(r.Context())
			if !ok {
				a.logger.Warn("authorization check failed: principal not found in context")
				a.HandleError(w, errors.ErrAuthRequired)
				return
			}

			for _, role := range roles {
				if principal.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			a.logger.WarnContext(r.Context(), "access denied: insufficient role",
				"user_id", principal.UserID,
				"role", principal.Role,
				"required_roles", roles)
			a.HandleError(w, errors.ErrUnauthorizedAccess)
		})
	}
}
