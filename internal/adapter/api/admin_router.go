package api

import (
	"log/slog"
	"net/http"

	"github.com/user/assistor/internal/adapter/api/handler"
	"github.com/user/assistor/internal/usecase"
)

// NewAdminRouter creates the router for the operator-facing admin server.
// It is expected to be bound to an internal listener, not exposed publicly.
func NewAdminRouter(uc *usecase.QueueAdminUseCase, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	adminHandler := handler.NewAdminHandler(uc, logger)

	mux.HandleFunc("GET /admin/queue/groups", adminHandler.Groups)
	mux.HandleFunc("GET /admin/queue/pending", adminHandler.Pending)
	mux.HandleFunc("GET /admin/queue/dead", adminHandler.DeadLetters)

	return mux
}
