package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/user/assistor/internal/domain"
	"github.com/user/assistor/internal/domain/mocks"
	"github.com/user/assistor/internal/usecase"
)

type provisionFixture struct {
	directory *mocks.MockTenantDirectory
	backend   *mocks.MockProvisionerBackend
	locker    *mocks.MockTenantLocker
	handler   *ProvisionHandler
}

func newProvisionFixture() *provisionFixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	directory := mocks.NewMockTenantDirectory()
	backend := &mocks.MockProvisionerBackend{ExternalTenantID: "A1", AssistantID: "O1"}
	locker := mocks.NewMockTenantLocker()
	shops := &mocks.MockShopInfoReader{Descriptor: domain.ShopDescriptor{Locale: "en"}}

	service := usecase.NewProvisionService(
		directory, shops, backend, mocks.NewMockAssistantConfigurator(), locker,
		logger, nil, 5*time.Second, 2*time.Second)

	return &provisionFixture{
		directory: directory,
		backend:   backend,
		locker:    locker,
		handler:   NewProvisionHandler(service, logger),
	}
}

func TestProvisionHandler_Provision(t *testing.T) {
	t.Run("provisions and returns the record", func(t *testing.T) {
		f := newProvisionFixture()
		body := `{"tenant_key": "shop-a.example.com", "access_token": "tok"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/tenants/provision", strings.NewReader(body))
		rr := httptest.NewRecorder()

		f.handler.Provision(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var record domain.TenantRecord
		if err := json.Unmarshal(rr.Body.Bytes(), &record); err != nil {
			t.Fatalf("invalid response body: %v", err)
		}
		if record.ExternalTenantID != "A1" || record.AssistantID != "O1" {
			t.Errorf("unexpected record: %+v", record)
		}
	})

	t.Run("missing fields return 400", func(t *testing.T) {
		f := newProvisionFixture()
		req := httptest.NewRequest(http.MethodPost, "/v1/tenants/provision", strings.NewReader(`{"tenant_key": "shop-a"}`))
		rr := httptest.NewRecorder()

		f.handler.Provision(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
		if f.backend.ProvisionCalls != 0 {
			t.Errorf("invalid request must not reach the backend")
		}
	})

	t.Run("backend outage maps to 502", func(t *testing.T) {
		f := newProvisionFixture()
		f.backend.ProvisionErr = domain.ErrProvisioningUnavailable

		body := `{"tenant_key": "shop-a.example.com", "access_token": "tok"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/tenants/provision", strings.NewReader(body))
		rr := httptest.NewRecorder()

		f.handler.Provision(rr, req)

		if rr.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", rr.Code)
		}
		var resp errorResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid error body: %v", err)
		}
		if resp.Code != "provisioning_unavailable" {
			t.Errorf("unexpected error code %q", resp.Code)
		}
	})

	t.Run("unreachable directory maps to 503", func(t *testing.T) {
		f := newProvisionFixture()
		f.directory.GetErr = domain.ErrDirectoryUnavailable

		body := `{"tenant_key": "shop-a.example.com", "access_token": "tok"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/tenants/provision", strings.NewReader(body))
		rr := httptest.NewRecorder()

		f.handler.Provision(rr, req)

		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d: %s", rr.Code, rr.Body.String())
		}
		if f.backend.ProvisionCalls != 0 {
			t.Error("directory outage must not trigger provisioning")
		}
	})

	t.Run("coordination store outage maps to 503", func(t *testing.T) {
		f := newProvisionFixture()
		f.locker.AcquireErr = errors.New("redis connection refused")

		body := `{"tenant_key": "shop-a.example.com", "access_token": "tok"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/tenants/provision", strings.NewReader(body))
		rr := httptest.NewRecorder()

		f.handler.Provision(rr, req)

		if rr.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp errorResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid error body: %v", err)
		}
		if resp.Code != "coordination_unavailable" {
			t.Errorf("unexpected error code %q", resp.Code)
		}
	})

	t.Run("persist failure maps to 500 with a retryable code", func(t *testing.T) {
		f := newProvisionFixture()
		f.directory.SetErr = domain.ErrDirectoryUnavailable

		body := `{"tenant_key": "shop-a.example.com", "access_token": "tok"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/tenants/provision", strings.NewReader(body))
		rr := httptest.NewRecorder()

		f.handler.Provision(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp errorResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid error body: %v", err)
		}
		if resp.Code != "persistence_after_provision_failed" {
			t.Errorf("unexpected error code %q", resp.Code)
		}
	})
}

func TestProvisionHandler_Offboard(t *testing.T) {
	f := newProvisionFixture()
	req := httptest.NewRequest(http.MethodDelete, "/v1/tenants/shop-a.example.com", nil)
	req.SetPathValue("tenantKey", "shop-a.example.com")
	rr := httptest.NewRecorder()

	f.handler.Offboard(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if f.backend.DeprovisionCalls != 1 {
		t.Errorf("expected 1 deprovision call, got %d", f.backend.DeprovisionCalls)
	}
}
