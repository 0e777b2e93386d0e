package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/hitoshi/collegeconnect/internal/metrics"
)

// NewRecoveryMiddleware はpanicを500応答に変換するミドルウェアを生成する。
// Loggingより外側に置くため、panicによる500はここでメトリクスに記録する。
// collectorがnilの場合は記録しない。
func NewRecoveryMiddleware(collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if collector == nil {
		collector = metrics.Nop{}
	}
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
				slog.Error("panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				collector.RecordHTTPStatus(http.StatusInternalServerError)

				if wantsJSON(r) {
					WriteInternalServerError(w)
					return
				}
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(recoveryPage))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wantsJSON は応答をJSONにすべきリクエストかを判定する。
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

const recoveryPage = `<!doctype html>
<html lang="en"><head><meta charset="utf-8"><title>College Connect</title></head>
<body><p>Something went wrong. Please try again.</p><p><a href="/dashboard">Back to dashboard</a></p></body></html>
`
