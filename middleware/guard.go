package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/authform/jwt"
)

// SessionCookie is the cookie carrying the session token.
const SessionCookie = "authform_session"

type sessionContextKey struct{}

// SessionFromContext returns the claims stored by a session guard.
func SessionFromContext(ctx context.Context) (*jwt.SessionClaims, bool) {
	claims, ok := ctx.Value(sessionContextKey{}).(*jwt.SessionClaims)
	return claims, ok
}

// RequireSession rejects requests without a valid session token.
func RequireSession(manager *jwt.Manager) func(http.Handler) http.Handler {
	return guard(manager, nil)
}

type sessionCheck func(ctx context.Context, claims *jwt.SessionClaims) bool

func guard(manager *jwt.Manager, check sessionCheck) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if manager == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := sessionToken(r)
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := manager.ParseSession(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if check != nil && !check(r.Context(), claims) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionToken(r *http.Request) (string, bool) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
