package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
)

type contextKey string

const operatorIDKey contextKey = "operatorID"

// requireToken gates every /fincas-geom route behind the panel's API token.
// The gateway forwards the acting admin's identity in X-Operator-Id; it is
// optional and carried through as a nullable operator reference.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" || !s.tokenAllowed(token) {
			respondError(w, http.StatusUnauthorized, "No autorizado")
			return
		}
		ctx := r.Context()
		if v := r.Header.Get("X-Operator-Id"); v != "" {
			if id, err := strconv.ParseInt(v, 10, 64); err == nil && id > 0 {
				ctx = context.WithValue(ctx, operatorIDKey, id)
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) tokenAllowed(token string) bool {
	ok := false
	for _, t := range s.apiTokens {
		if subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
			ok = true
		}
	}
	return ok
}

func extractToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	return r.Header.Get("X-Api-Token")
}

// operatorIDFromContext returns the acting admin's ID, or nil when the
// request carried none.
func operatorIDFromContext(ctx context.Context) *int64 {
	if id, ok := ctx.Value(operatorIDKey).(int64); ok {
		return &id
	}
	return nil
}
