package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/utafrali/catalog/pkg/errors"
	"github.com/utafrali/catalog/pkg/httputil"
	"github.com/utafrali/catalog/pkg/logger"
)

type contextKeyType string

const claimsKey contextKeyType = "claims"

// LegacyTokenHeader is the header older storefront clients send the bearer
// token in. It is consulted only when Authorization is absent.
const LegacyTokenHeader = "token"

// Claims holds the subset of JWT claims the catalog relies on.
type Claims struct {
	Subject string
	Role    string
}

// TokenValidator validates a raw token and returns its claims.
type TokenValidator func(token string) (*Claims, error)

type roleClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// HMACValidator returns a TokenValidator for HS256 signed tokens. Tokens
// signed with any other algorithm are rejected.
func HMACValidator(secret []byte) TokenValidator {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(raw string) (*Claims, error) {
		var rc roleClaims
		if _, err := parser.ParseWithClaims(raw, &rc, keyFunc); err != nil {
			return nil, err
		}
		if rc.Role == "" {
			return nil, errors.New("token has no role claim")
		}
		return &Claims{Subject: rc.Subject, Role: rc.Role}, nil
	}
}

// Auth validates the bearer token and stores its claims in the request context.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				header = r.Header.Get(LegacyTokenHeader)
			}
			if header == "" {
				httputil.WriteError(w, r, apperrors.Unauthorized("missing authorization header"), nil)
				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
				httputil.WriteError(w, r, apperrors.Unauthorized("invalid authorization header format"), nil)
				return
			}

			claims, err := validate(strings.TrimSpace(token))
			if err != nil {
				logger.FromContext(r.Context()).DebugContext(r.Context(), "token rejected", "error", err)
				httputil.WriteError(w, r, apperrors.Unauthorized("invalid or expired token"), nil)
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = logger.WithSubject(ctx, claims.Subject)
			ctx = logger.NewContext(ctx, logger.FromContext(ctx).With("subject", claims.Subject))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose token role is not in roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		roleSet[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := roleSet[RoleFromContext(r.Context())]; !ok {
				httputil.WriteError(w, r, apperrors.Forbidden("insufficient permissions"), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext returns the claims stored by Auth, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}

// RoleFromContext extracts the token role from the request context.
func RoleFromContext(ctx context.Context) string {
	if c := ClaimsFromContext(ctx); c != nil {
		return c.Role
	}
	return ""
}
