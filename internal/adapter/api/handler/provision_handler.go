package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/user/assistor/internal/domain"
	"github.com/user/assistor/internal/usecase"
)

// ProvisionHandler handles tenant provisioning and offboarding requests.
type ProvisionHandler struct {
	service *usecase.ProvisionService
	logger  *slog.Logger
}

// NewProvisionHandler creates a new ProvisionHandler.
func NewProvisionHandler(service *usecase.ProvisionService, logger *slog.Logger) *ProvisionHandler {
	return &ProvisionHandler{service: service, logger: logger}
}

type provisionRequest struct {
	TenantKey   string `json:"tenant_key"`
	AccessToken string `json:"access_token"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Provision ensures the tenant's downstream resources exist and returns the
// record. Safe to call on every load: a provisioned tenant takes the
// read-only fast path.
func (h *ProvisionHandler) Provision(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if req.TenantKey == "" || req.AccessToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "tenant_key and access_token are required")
		return
	}

	record, err := h.service.EnsureProvisioned(r.Context(), domain.TenantCredentials{
		TenantKey:   req.TenantKey,
		AccessToken: req.AccessToken,
	})
	if err != nil {
		h.writeProvisionError(w, req.TenantKey, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (h *ProvisionHandler) writeProvisionError(w http.ResponseWriter, tenantKey string, err error) {
	switch {
	case errors.Is(err, domain.ErrProvisioningUnavailable):
		writeError(w, http.StatusBadGateway, "provisioning_unavailable",
			"the provisioning backend is unavailable; reload to retry")
	case errors.Is(err, domain.ErrDirectoryUnavailable):
		writeError(w, http.StatusServiceUnavailable, "directory_unavailable",
			"the tenant directory is unreachable; provisioning was not attempted")
	case errors.Is(err, domain.ErrPersistenceAfterProvision):
		writeError(w, http.StatusInternalServerError, "persistence_after_provision_failed",
			"provisioned resources could not be recorded; retry will reconcile without re-provisioning")
	case errors.Is(err, domain.ErrLockHeld):
		writeError(w, http.StatusConflict, "provisioning_in_progress",
			"another request is provisioning this tenant; retry shortly")
	case errors.Is(err, domain.ErrLockUnavailable):
		writeError(w, http.StatusServiceUnavailable, "coordination_unavailable",
			"the provisioning coordination store is unreachable; retry later")
	default:
		h.logger.Error("unexpected provisioning error", "tenant_key", tenantKey, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected error")
	}
}

// Offboard removes the tenant's downstream resources. Idempotent on
// retrigger.
func (h *ProvisionHandler) Offboard(w http.ResponseWriter, r *http.Request) {
	tenantKey := r.PathValue("tenantKey")
	if tenantKey == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "tenantKey is required")
		return
	}

	if err := h.service.Offboard(r.Context(), tenantKey); err != nil {
		writeError(w, http.StatusBadGateway, "provisioning_unavailable", "offboarding failed; retry later")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
