package server

import (
	"context"
	"net/http"
	"time"

	"github.com/FreedomSnow/sinoname/internal/cookie"
	"github.com/FreedomSnow/sinoname/internal/emailutil"
	jsonwriter "github.com/FreedomSnow/sinoname/internal/json"
	"github.com/FreedomSnow/sinoname/internal/log"
	"github.com/FreedomSnow/sinoname/internal/session"
)

// MiddlewareFunc is a function that wraps an http.Handler
type MiddlewareFunc func(http.Handler) http.Handler

// ChainMiddleware chains multiple middleware functions
func ChainMiddleware(h http.Handler, middlewares ...MiddlewareFunc) http.Handler {
	for _, mw := range middlewares {
		h = mw(h)
	}
	return h
}

// NewCORSMiddleware adds CORS headers to responses.
// Credentials are only allowed for explicitly listed origins; with no
// configured origins (development mode) we allow all but never with
// credentials.
func NewCORSMiddleware(allowedOrigins []string) MiddlewareFunc {
	allowedMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		allowedMap[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" && allowedMap[origin] {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			} else if len(allowedOrigins) == 0 {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "3600")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// responseWriterDelegator wraps http.ResponseWriter to capture status and bytes
// written while properly delegating all optional interfaces through Unwrap
type responseWriterDelegator struct {
	http.ResponseWriter
	status      int
	written     int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriterDelegator {
	return &responseWriterDelegator{
		ResponseWriter: w,
		status:         http.StatusOK,
	}
}

func (r *responseWriterDelegator) Status() int {
	return r.status
}

func (r *responseWriterDelegator) BytesWritten() int {
	return r.written
}

func (r *responseWriterDelegator) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.status = code
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseWriterDelegator) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.ResponseWriter.Write(b)
	r.written += n
	return n, err
}

// Unwrap returns the underlying ResponseWriter for interface detection
// with http.ResponseController
func (r *responseWriterDelegator) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Flush implements http.Flusher
func (r *responseWriterDelegator) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

var _ http.ResponseWriter = (*responseWriterDelegator)(nil)
var _ http.Flusher = (*responseWriterDelegator)(nil)

// NewLoggerMiddleware adds request/response logging
func NewLoggerMiddleware(prefix string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			fields := map[string]any{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      wrapped.Status(),
				"duration_ms": time.Since(start).Milliseconds(),
				"bytes":       wrapped.BytesWritten(),
				"remote_addr": r.RemoteAddr,
			}
			log.LogInfoWithFields(prefix, "request", fields)
		})
	}
}

// NewRecoverMiddleware recovers from panics
func NewRecoverMiddleware(prefix string) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Logf("<%s> Recovered from panic: %v", prefix, err)
					jsonwriter.WriteInternalServerError(w, "Internal Server Error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type contextKey string

const sessionContextKey contextKey = "session"

// SessionFromContext returns the session record attached by
// NewSessionRequiredMiddleware.
func SessionFromContext(ctx context.Context) (*session.Record, bool) {
	record, ok := ctx.Value(sessionContextKey).(*session.Record)
	return record, ok
}

// NewSessionRequiredMiddleware rejects requests without a valid, unexpired
// session cookie. Invalid or expired cookies are cleared so the browser
// stops resending them.
func NewSessionRequiredMiddleware(codec *session.Codec) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			value, err := cookie.GetSession(r)
			if err != nil {
				jsonwriter.WriteUnauthorized(w, "Not logged in")
				return
			}

			record, err := codec.Decode(value)
			if err != nil {
				log.LogDebug("Invalid session cookie: %v", err)
				cookie.ClearSession(w)
				jsonwriter.WriteUnauthorized(w, "Invalid session")
				return
			}

			if record.IsExpired(time.Now()) {
				log.LogDebug("Session expired for user %s", record.User.Email)
				cookie.ClearSession(w)
				jsonwriter.WriteUnauthorized(w, "Session expired")
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, record)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewAdminRequiredMiddleware allows only sessions whose email is in the
// admin list. It must run inside NewSessionRequiredMiddleware, which
// attaches the session record to the request context.
func NewAdminRequiredMiddleware(adminEmails []string) MiddlewareFunc {
	allowed := make(map[string]bool, len(adminEmails))
	for _, email := range adminEmails {
		allowed[emailutil.Normalize(email)] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			record, ok := SessionFromContext(r.Context())
			if !ok || !allowed[emailutil.Normalize(record.User.Email)] {
				jsonwriter.WriteForbidden(w, "Admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
