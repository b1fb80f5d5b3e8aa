package api

import (
	"log/slog"
	"net/http"

	"github.com/user/assistor/internal/adapter/api/handler"
	"github.com/user/assistor/internal/adapter/api/middleware"
	"github.com/user/assistor/internal/domain"
	"github.com/user/assistor/internal/pkg/config"
)

// NewRouter creates and configures the main HTTP router for the API server.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	apiKeyRepo domain.APIKeyRepository,
	provisionHandler *handler.ProvisionHandler,
	trainingHandler *handler.TrainingHandler,
) http.Handler {
	mux := http.NewServeMux()

	// Middleware
	authMiddleware := middleware.Auth(apiKeyRepo, logger)
	trainingLimit := middleware.TenantRateLimit(cfg.TrainingRatePerMin, cfg.TrainingRateBurst, logger)

	// Routes
	mux.Handle("POST /v1/tenants/provision", authMiddleware(http.HandlerFunc(provisionHandler.Provision)))
	mux.Handle("DELETE /v1/tenants/{tenantKey}", authMiddleware(http.HandlerFunc(provisionHandler.Offboard)))
	mux.Handle("POST /v1/tenants/{tenantKey}/training", authMiddleware(trainingLimit(http.HandlerFunc(trainingHandler.Enqueue))))
	mux.Handle("GET /v1/tenants/{tenantKey}/embeddings/count", authMiddleware(http.HandlerFunc(trainingHandler.EmbeddingsCount)))
	mux.Handle("GET /v1/tenants/{tenantKey}/runs", authMiddleware(http.HandlerFunc(trainingHandler.Runs)))

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return mux
}
