package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type Middleware func(http.Handler) http.Handler

// Chain(h, a, b) serves a(b(h)): the first middleware sees the request first.
func Chain(h http.Handler, m ...Middleware) http.Handler {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

// WithBodyLimit caps request bodies at limitBytes. A declared length above the
// cap is refused with 413 before the handler runs.
func WithBodyLimit(limitBytes int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limitBytes {
				writeProblem(w, http.StatusRequestEntityTooLarge, "request body too large", "payload_too_large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limitBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// WithRecover turns a handler panic into a JSON 500. http.ErrAbortHandler is
// re-raised so the server aborts the connection.
func WithRecover(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				logger.Error("handler panic",
					"request_id", RequestIDFromContext(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"panic", v,
				)
				writeProblem(w, http.StatusInternalServerError, "internal error", "internal")
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// writeProblem uses the same {"error","code"} body as the API handlers.
func writeProblem(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}
