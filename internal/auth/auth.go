package auth

import (
	stderrors "errors"
	"strings"

	errors "github.com/frahmantamala/merchant-settlement/internal"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the access token claims minted by the platform's auth provider.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Principal converts verified claims to the request principal. Tokens without
// a user_id fall back to the subject and tokens without a role are merchants.
func (c *Claims) Principal() *errors.Principal {
	userID := c.UserID
	if userID == "" {
		userID = c.Subject
	}
	role := strings.ToLower(strings.TrimSpace(c.Role))
	if role == "" {
		role = errors.RoleMerchant
	}
	return &errors.Principal{
		UserID: userID,
		Email:  c.Email,
		Role:   role,
	}
}

type TokenVerifier interface {
	Verify(token string) (*Claims, error)
}

// JWTVerifier checks HS256 tokens against a shared secret.
type JWTVerifier struct {
	secret []byte
	issuer string
}

func NewJWTVerifier(secret, issuer string) *JWTVerifier {
	return &JWTVerifier{
		secret: []byte(secret),
		issuer: issuer,
	}
}

var _ TokenVerifier = (*JWTVerifier)(nil)

func (v *JWTVerifier) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.ErrAuthRequired
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.ErrInvalidToken
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.ErrTokenExpired
		}
		return nil, errors.ErrInvalidToken.WithCause(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.ErrInvalidToken
	}
	if claims.UserID == "" && claims.Subject == "" {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}
