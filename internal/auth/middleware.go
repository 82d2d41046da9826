package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/isdelr/nukta-be/internal/apperror"
	"github.com/isdelr/nukta-be/internal/models"
)

// CookieName is the cookie that carries the session token.
const CookieName = "token"

type contextKey string

const userKey = contextKey("user")

// Authenticator resolves a session token to the acting user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.User, error)
}

// ErrorWriter renders an error response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// TokenFromRequest reads the session token from the Authorization header or the cookie.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok && token != "" {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// Middleware rejects requests without a valid session and puts the acting
// user into the request context.
func Middleware(authn Authenticator, writeErr ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				writeErr(w, r, apperror.NewUnauthorized("Not authorized, no token", nil))
				return
			}

			user, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				writeErr(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser returns a context carrying the acting user.
func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFrom returns the acting user stored by Middleware.
func UserFrom(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userKey).(models.User)
	return user, ok
}
