package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"powershare/internal/apperror"
)

type IdentityResolver interface {
	ResolveEmail(ctx context.Context, email string) (string, error)
}

// ResolveUser maps the authenticated email to a user id. It must run after
// Auth. A token whose subject no longer exists is rejected as unauthorized.
func ResolveUser(resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email, ok := EmailFromContext(r.Context())
			if !ok {
				unauthorized(w, "unauthorized")
				return
			}
			userID, err := resolver.ResolveEmail(r.Context(), email)
			if err != nil {
				var appErr *apperror.AppError
				if errors.As(err, &appErr) && errors.Is(err, apperror.ErrUnauthorized) {
					unauthorized(w, appErr.Message)
					return
				}
				slog.ErrorContext(r.Context(), "resolving identity", "err", err)
				WriteError(w, http.StatusInternalServerError, "internal_error", "unable to verify identity")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), userID)))
		})
	}
}
