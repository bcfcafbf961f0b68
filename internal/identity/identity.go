// Package identity assigns each browser an anonymous chat session.
package identity

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	SessionCookieName = "cityagent_session"
	SessionHeaderName = "X-Chat-Session-Id"
	sessionCookieAge  = 7 * 24 * time.Hour
)

type contextKey int

const sessionIDKey contextKey = iota

// SessionIDFromContext extracts the chat session ID from the request context.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return ""
}

// WithSessionID returns ctx carrying id.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

func isValidSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func sessionIDFromRequest(r *http.Request) string {
	if sid := strings.TrimSpace(r.Header.Get(SessionHeaderName)); isValidSessionID(sid) {
		return sid
	}
	if c, err := r.Cookie(SessionCookieName); err == nil && isValidSessionID(c.Value) {
		return c.Value
	}
	return ""
}

func setSessionCookie(w http.ResponseWriter, id string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(sessionCookieAge.Seconds()),
		Expires:  time.Now().Add(sessionCookieAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secure,
	})
}

// Middleware injects the chat session ID, issuing a new cookie when the
// request carries none.
func Middleware(isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := sessionIDFromRequest(r)
			if sid == "" {
				sid = uuid.NewString()
			}
			setSessionCookie(w, sid, !isDev && r.TLS != nil)

			next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), sid)))
		})
	}
}

// IPFromRequest returns a normalized remote IP for request logging.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
