package chi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type sessionCtxKey struct{}

// SessionFromContext returns the session ID placed by SessionMiddleware,
// or "" if the middleware did not run.
func SessionFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(sessionCtxKey{}).(string); ok {
		return id
	}
	return ""
}

// ContextWithSession stores a session ID in the context. Exposed for tests.
func ContextWithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, sessionID)
}

// SessionMiddleware assigns each client a stable session cookie. A request
// without a (valid) cookie gets a fresh UUID; the ID rides the context so
// handlers can key conversation transcripts on it.
func SessionMiddleware(cookieName string, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sessionID string
			if c, err := r.Cookie(cookieName); err == nil {
				if _, err := uuid.Parse(c.Value); err == nil {
					sessionID = c.Value
				}
			}
			if sessionID == "" {
				sessionID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   int(ttl.Seconds()),
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
			}

			next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), sessionID)))
		})
	}
}
