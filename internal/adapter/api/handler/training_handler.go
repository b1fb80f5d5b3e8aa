package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/user/assistor/internal/domain"
	"github.com/user/assistor/internal/usecase"
)

// TrainingHandler handles training triggers, run history, and embedding
// counts.
type TrainingHandler struct {
	trainer *usecase.Trainer
	stats   *usecase.EmbeddingStats
	runs    domain.JobRunRecorder
	logger  *slog.Logger
}

// NewTrainingHandler creates a new TrainingHandler.
func NewTrainingHandler(trainer *usecase.Trainer, stats *usecase.EmbeddingStats, runs domain.JobRunRecorder, logger *slog.Logger) *TrainingHandler {
	return &TrainingHandler{trainer: trainer, stats: stats, runs: runs, logger: logger}
}

type trainingRequest struct {
	AccessToken string `json:"access_token"`
}

type trainingResponse struct {
	JobID string `json:"job_id"`
}

// Enqueue appends one training job for the tenant and returns 202 with the
// job id. Fire and forget; completion is observable via run history and the
// embeddings count.
func (h *TrainingHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	tenantKey := r.PathValue("tenantKey")
	if tenantKey == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "tenantKey is required")
		return
	}

	var req trainingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if req.AccessToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "access_token is required")
		return
	}

	jobID, err := h.trainer.EnqueueTraining(r.Context(), domain.TenantCredentials{
		TenantKey:   tenantKey,
		AccessToken: req.AccessToken,
	})
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "queue_unavailable", "failed to enqueue training job")
		return
	}

	writeJSON(w, http.StatusAccepted, trainingResponse{JobID: jobID})
}

type countResponse struct {
	TenantKey string `json:"tenant_key"`
	Count     int64  `json:"count"`
}

// EmbeddingsCount returns the number of vectors in the tenant's namespace.
// A never-trained tenant reports 0.
func (h *TrainingHandler) EmbeddingsCount(w http.ResponseWriter, r *http.Request) {
	tenantKey := r.PathValue("tenantKey")
	if tenantKey == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "tenantKey is required")
		return
	}

	count, err := h.stats.Count(r.Context(), tenantKey)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "vector_store_unavailable", "failed to read embedding count")
		return
	}

	writeJSON(w, http.StatusOK, countResponse{TenantKey: tenantKey, Count: count})
}

// Runs returns recent job run outcomes for the tenant.
func (h *TrainingHandler) Runs(w http.ResponseWriter, r *http.Request) {
	tenantKey := r.PathValue("tenantKey")
	if tenantKey == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "tenantKey is required")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	runs, err := h.runs.ListRuns(r.Context(), tenantKey, limit)
	if err != nil {
		h.logger.Error("failed to list job runs", "tenant_key", tenantKey, "error", err)
		writeError(w, http.StatusServiceUnavailable, "run_history_unavailable", "failed to read run history")
		return
	}
	if runs == nil {
		runs = []domain.JobRun{}
	}

	writeJSON(w, http.StatusOK, runs)
}
