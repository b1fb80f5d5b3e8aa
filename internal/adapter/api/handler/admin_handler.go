package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/user/assistor/internal/usecase"
)

// AdminHandler exposes read-only queue introspection for operators.
type AdminHandler struct {
	useCase *usecase.QueueAdminUseCase
	logger  *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(uc *usecase.QueueAdminUseCase, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{useCase: uc, logger: logger}
}

// Groups lists consumer groups on the training stream.
func (h *AdminHandler) Groups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.useCase.GroupInfo(r.Context())
	if err != nil {
		h.logger.Error("failed to get group info", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

// Pending summarizes unacknowledged deliveries for a consumer group.
func (h *AdminHandler) Pending(w http.ResponseWriter, r *http.Request) {
	group := r.URL.Query().Get("group")
	if group == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "group is required")
		return
	}

	summary, err := h.useCase.PendingSummary(r.Context(), group)
	if err != nil {
		h.logger.Error("failed to get pending summary", "group", group, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// DeadLetters returns the most recent dead-lettered jobs.
func (h *AdminHandler) DeadLetters(w http.ResponseWriter, r *http.Request) {
	var count int64
	if v := r.URL.Query().Get("count"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			count = n
		}
	}

	entries, err := h.useCase.DeadLetters(r.Context(), count)
	if err != nil {
		h.logger.Error("failed to read dead letters", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
