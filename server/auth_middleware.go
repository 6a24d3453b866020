package server

import (
	"context"
	"net/http"

	apperrors "github.com/jrsteele09/go-auth-core/internal/errors"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyUserID stores the authenticated user ID
const ContextKeyUserID ContextKey = "user_id"

// RequireAuth validates the Bearer access token and stores its subject in
// the request context.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				s.writeError(w, apperrors.ErrUnauthenticated)
				return
			}

			subject, err := s.auth.VerifyAccess(r.Context(), raw)
			if err != nil {
				s.writeError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyUserID, subject)
			next(w, r.WithContext(ctx))
		}
	}
}

// UserIDFromContext returns the subject stored by RequireAuth.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ContextKeyUserID).(string)
	return id, ok && id != ""
}
