// Package auth provides the bearer-token middleware that supplies the
// requesting owner's identity to handlers. Token issuance lives in the main
// application; this service only verifies.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

const ownerIDKey contextKey = "owner_id"

var ErrNoOwner = errors.New("no authenticated owner in context")

// Middleware validates Authorization: Bearer tokens and injects the owner id.
type Middleware struct {
	secret []byte
}

// NewMiddleware creates a middleware verifying HS256 tokens with the shared secret
func NewMiddleware(secret []byte) *Middleware {
	return &Middleware{secret: secret}
}

// Wrap rejects unauthenticated requests with 401
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenStr == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}

		claims := jwt.RegisteredClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return m.secret, nil
		})
		if err != nil || !token.Valid {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ownerID, err := uuid.Parse(claims.Subject)
		if err != nil {
			http.Error(w, "invalid token subject", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ownerIDKey, ownerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OwnerFromContext returns the authenticated owner's id
func OwnerFromContext(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(ownerIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrNoOwner
	}
	return id, nil
}

// WithOwner injects an owner id into a context. Intended for tests.
func WithOwner(ctx context.Context, ownerID uuid.UUID) context.Context {
	return context.WithValue(ctx, ownerIDKey, ownerID)
}
