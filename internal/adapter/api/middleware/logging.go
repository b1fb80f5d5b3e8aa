package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// statusRecorder captures what the wrapped handler wrote so the request line
// can report it.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(p []byte) (int, error) {
	n, err := sr.ResponseWriter.Write(p)
	sr.bytes += n
	return n, err
}

// Logging emits one line per request. Tenant-scoped routes carry the tenant
// key so request lines correlate with provisioning and training logs for the
// same tenant.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"bytes", rec.bytes,
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_addr", r.RemoteAddr,
			}
			if tenantKey := tenantFromPath(r.URL.Path); tenantKey != "" {
				attrs = append(attrs, "tenant_key", tenantKey)
			}

			if rec.status >= http.StatusInternalServerError {
				logger.Error("request failed", attrs...)
				return
			}
			logger.Info("request handled", attrs...)
		})
	}
}

// tenantFromPath pulls the tenant key out of /v1/tenants/{tenantKey}/...
// routes. The provision route carries the key in the request body, not the
// path, and reports none here.
func tenantFromPath(path string) string {
	rest, found := strings.CutPrefix(path, "/v1/tenants/")
	if !found {
		return ""
	}
	key, _, _ := strings.Cut(rest, "/")
	if key == "provision" {
		return ""
	}
	return key
}
