package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"tripmate-backend/internal/apperr"
	"tripmate-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

type contextKey string

const (
	userKey    contextKey = "user"
	subjectKey contextKey = "subject"
)

// UserResolver maps a verified email to a persistent AppUser record.
type UserResolver interface {
	GetOrCreateByEmail(ctx context.Context, email string) (*models.AppUser, error)
}

// Identity verifies an optional bearer token and attaches the resolved
// AppUser to the request context. A missing header is anonymous, not an
// error; endpoints that need a user check with RequireUser.
func Identity(secret string, users UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				respondAuthError(w, apperr.AuthMalformed())
				return
			}

			claims := jwt.MapClaims{}
			_, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					respondAuthError(w, apperr.TokenExpired())
					return
				}
				respondAuthError(w, apperr.InvalidToken())
				return
			}

			email, _ := claims["email"].(string)
			if email == "" {
				respondAuthError(w, apperr.UnmappableIdentity())
				return
			}

			ctx := r.Context()
			// The subject is kept for diagnostics only; lookup is by email.
			if sub, err := claims.GetSubject(); err == nil && sub != "" {
				ctx = context.WithValue(ctx, subjectKey, sub)
			}

			user, err := users.GetOrCreateByEmail(ctx, email)
			if err != nil {
				log.Error().Err(err).Str("email", email).Msg("Failed to resolve user")
				respondAuthError(w, apperr.TransientStorage())
				return
			}

			ctx = context.WithValue(ctx, userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFrom extracts the authenticated user from context, nil when anonymous.
func UserFrom(ctx context.Context) *models.AppUser {
	user, _ := ctx.Value(userKey).(*models.AppUser)
	return user
}

// SubjectFrom extracts the token subject from context, empty when absent.
func SubjectFrom(ctx context.Context) string {
	sub, _ := ctx.Value(subjectKey).(string)
	return sub
}

// RequireUser returns the authenticated user or an AuthMissing error.
func RequireUser(ctx context.Context) (*models.AppUser, error) {
	user := UserFrom(ctx)
	if user == nil {
		return nil, apperr.AuthMissing()
	}
	return user, nil
}

func respondAuthError(w http.ResponseWriter, e *apperr.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	json.NewEncoder(w).Encode(map[string]string{"error": e.Message})
}
