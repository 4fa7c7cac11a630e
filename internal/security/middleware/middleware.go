package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/surelog/surelog/internal/security/auth"
	"github.com/surelog/surelog/internal/security/ratelimit"
	"github.com/surelog/surelog/internal/session"
)

// SessionCookie is the name of the browser session cookie
const SessionCookie = "surelog_session"

// Principal identifies the authenticated caller. SessionID is empty when the
// request carried a bearer token instead of a cookie.
type Principal struct {
	UserID    int64
	Email     string
	SessionID string
}

type principalContextKey struct{}

// publicPath reports whether a request may pass without credentials. The
// sign-in surface and probes stay open; the dashboard does its own redirect.
func publicPath(path string) bool {
	switch path {
	case "/", "/signin", "/dashboard",
		"/api/login", "/api/logout", "/api/auth/token", "/api/checkLoggedInStatus",
		"/healthz", "/readyz", "/metrics":
		return true
	}
	return false
}

// Authenticate resolves the caller from a bearer token or a session cookie
// and stores the Principal in the request context. Anything else on a
// protected path is rejected.
func Authenticate(tm *auth.TokenManager, sessions *session.Store, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := resolvePrincipal(r, tm, sessions)
			if principal != nil {
				ctx := context.WithValue(r.Context(), principalContextKey{}, principal)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if publicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			log.Info("unauthenticated request rejected", slog.String("path", r.URL.Path))
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		})
	}
}

func resolvePrincipal(r *http.Request, tm *auth.TokenManager, sessions *session.Store) *Principal {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		tokenString, err := auth.ExtractToken(authHeader)
		if err != nil {
			return nil
		}
		claims, err := tm.ValidateToken(tokenString)
		if err != nil {
			return nil
		}
		return &Principal{UserID: claims.UserID, Email: claims.Email}
	}

	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return nil
	}
	// any store failure counts as no session
	sess, err := sessions.Get(r.Context(), cookie.Value)
	if err != nil {
		return nil
	}
	return &Principal{UserID: sess.UserID, Email: sess.Email, SessionID: sess.ID}
}

// RateLimitMiddleware applies the default per-client budget, keyed by IP
func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(ClientIP(r)) {
				log.Warn("rate limit exceeded", slog.String("path", r.URL.Path))
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ValidateJSONContentType ensures mutating API requests carry JSON bodies
func ValidateJSONContentType(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength == 0 || !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			if !strings.Contains(contentType, "application/json") {
				log.Warn("invalid content type",
					slog.String("path", r.URL.Path),
					slog.String("content_type", contentType),
				)
				http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetPrincipal returns the authenticated caller, or nil
func GetPrincipal(ctx context.Context) *Principal {
	if p := ctx.Value(principalContextKey{}); p != nil {
		return p.(*Principal)
	}
	return nil
}

// ClientIP extracts the caller address, honoring X-Forwarded-For
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
