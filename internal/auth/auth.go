// Package auth verifies Supabase access tokens and carries the caller's
// user id through request contexts.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultAudience is the audience Supabase stamps on user access tokens.
const DefaultAudience = "authenticated"

// ErrInvalidToken is returned for missing, malformed, expired or mis-signed tokens.
var ErrInvalidToken = eris.New("auth: invalid token")

type ctxKey struct{}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, userID)
}

// UserID returns the authenticated user id stored in ctx, or "".
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Verifier validates HS256 access tokens signed with the project JWT secret.
type Verifier struct {
	secret   []byte
	audience string
	parser   *jwt.Parser
}

// NewVerifier creates a Verifier. An empty audience defaults to DefaultAudience.
func NewVerifier(secret, audience string) *Verifier {
	if audience == "" {
		audience = DefaultAudience
	}
	return &Verifier{
		secret:   []byte(secret),
		audience: audience,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify parses token and returns its subject (the user id).
func (v *Verifier) Verify(token string) (string, error) {
	if token == "" || len(v.secret) == 0 {
		return "", ErrInvalidToken
	}
	var claims jwt.RegisteredClaims
	_, err := v.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return "", eris.Wrap(ErrInvalidToken, err.Error())
	}
	if claims.Subject == "" {
		return "", eris.Wrap(ErrInvalidToken, "missing subject")
	}
	return claims.Subject, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// token subject in the request context.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := v.Verify(bearerToken(r))
		if err != nil {
			zap.L().Debug("auth: rejected request", zap.String("path", r.URL.Path), zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"}) //nolint:errcheck
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}
