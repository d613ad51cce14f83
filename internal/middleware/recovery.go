package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5"
)

// Recovery turns a panicking handler into a 500. The log line carries the
// matched route and reminder category so a crash in one cron trigger can be
// told apart from the others.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.Error("reminder handler panicked", panicAttrs(r, rec)...)
				writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// panicAttrs reads the chi route context after routing has filled it in.
func panicAttrs(r *http.Request, rec any) []any {
	attrs := []any{
		"panic", rec,
		"correlation_id", GetCorrelationID(r.Context()),
		"method", r.Method,
		"route", routePattern(r),
	}
	if category := chi.URLParam(r, "category"); category != "" {
		attrs = append(attrs, "category", category)
	}
	return append(attrs, "stack", string(debug.Stack()))
}
