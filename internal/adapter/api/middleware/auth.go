package middleware

import (
	"log/slog"
	"net/http"

	"github.com/user/assistor/internal/domain"
)

// APIKeyHeader carries the service API key presented by the storefront app
// proxy on every call.
const APIKeyHeader = "X-API-Key"

// Auth rejects requests that do not present a known service API key. The
// repository caches lookups, so this sits on every route without a database
// round trip per request. A repository failure rejects closed.
func Auth(repo domain.APIKeyRepository, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				logger.Warn("request without API key", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				http.Error(w, "Unauthorized: API key required", http.StatusUnauthorized)
				return
			}

			valid, err := repo.IsValid(r.Context(), key)
			switch {
			case err != nil:
				logger.Error("API key validation failed", "path", r.URL.Path, "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			case !valid:
				logger.Warn("request with unknown API key", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				http.Error(w, "Unauthorized: Invalid API key", http.StatusUnauthorized)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
