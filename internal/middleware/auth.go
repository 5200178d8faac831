package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"powershare/internal/auth"
)

type contextKey string

const (
	emailKey  contextKey = "email"
	userIDKey contextKey = "user_id"
)

type SubjectParser interface {
	Subject(token string) (string, error)
}

func EmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(emailKey).(string)
	return email, ok && email != ""
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

func ContextWithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, emailKey, email)
}

func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// Auth verifies the bearer token and stores its subject email in the request
// context.
func Auth(tokens SubjectParser) func(http.Handler) http.Handler {
	return authenticate(tokens, false)
}

// WebSocketAuth is Auth for upgrade requests. Browsers cannot set headers on
// websocket handshakes, so a token query parameter is accepted when the
// header is absent.
func WebSocketAuth(tokens SubjectParser) func(http.Handler) http.Handler {
	return authenticate(tokens, true)
}

func authenticate(tokens SubjectParser, allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r, allowQuery)
			if !ok {
				unauthorized(w, "missing or invalid authorization header")
				return
			}
			email, err := tokens.Subject(token)
			if err != nil {
				if errors.Is(err, auth.ErrTokenExpired) {
					unauthorized(w, "token expired")
					return
				}
				unauthorized(w, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithEmail(r.Context(), email)))
		})
	}
}

func bearerToken(r *http.Request, allowQuery bool) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if !allowQuery {
			return "", false
		}
		token := r.URL.Query().Get("token")
		return token, token != ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	WriteError(w, http.StatusUnauthorized, "unauthorized", message)
}

// WriteError writes the JSON error envelope shared by every HTTP error
// response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code, "message": message})
}
