package middleware

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"

	errors "github.com/frahmantamala/merchant-settlement/internal"
	"github.com/frahmantamala/merchant-settlement/internal/transport"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
)

// OpenAPIValidator checks request parameters and bodies against the API
// document. Routes the document does not describe pass through untouched.
// Authentication is left to the auth middleware.
func OpenAPIValidator(spec []byte, logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	doc, err := openapi3.NewLoader().LoadFromData(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	// Match on path only; the server list is for the docs UI.
	doc.Servers = nil

	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build openapi router: %w", err)
	}

	base := transport.NewBaseHandler(logger)
	options := &openapi3filter.Options{
		AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		MultiError:         false,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := router.FindRoute(r)
			if err != nil {
				var routeErr *routers.RouteError
				if stderrors.As(err, &routeErr) {
					next.ServeHTTP(w, r)
					return
				}
				base.HandleError(w, errors.NewInternalError("failed to match route", err))
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options:    options,
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				logger.WarnContext(r.Context(), "request failed openapi validation",
					"method", r.Method, "path", r.URL.Path, "error", err)
				base.HandleError(w, validationError(err))
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

func validationError(err error) *errors.AppError {
	var reqErr *openapi3filter.RequestError
	if stderrors.As(err, &reqErr) {
		field := ""
		if reqErr.Parameter != nil {
			field = reqErr.Parameter.Name
		} else if reqErr.RequestBody != nil {
			field = "body"
		}
		var schemaErr *openapi3.SchemaError
		if stderrors.As(reqErr.Err, &schemaErr) {
			if path := schemaErr.JSONPointer(); len(path) > 0 {
				field = path[len(path)-1]
			}
			return errors.NewValidationFieldError(field, schemaErr.Reason, errors.ErrCodeValidationFailed)
		}
		return errors.NewValidationFieldError(field, reqErr.Error(), errors.ErrCodeValidationFailed)
	}
	return errors.NewValidationError(err.Error(), errors.ErrCodeValidationFailed)
}
