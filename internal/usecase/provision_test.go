package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/user/assistor/internal/domain"
	"github.com/user/assistor/internal/domain/mocks"
)

func newProvisionService(
	directory *mocks.MockTenantDirectory,
	backend *mocks.MockProvisionerBackend,
	configurator *mocks.MockAssistantConfigurator,
	locker *mocks.MockTenantLocker,
) *ProvisionService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	shops := &mocks.MockShopInfoReader{Descriptor: domain.ShopDescriptor{
		Name:        "Boards & More",
		URL:         "https://shop-a.example.com",
		Description: "snowboards and gear",
		Locale:      "en",
	}}
	return NewProvisionService(directory, shops, backend, configurator, locker,
		logger, nil, 5*time.Second, 3*time.Second)
}

func TestEnsureProvisioned_FirstProvisioning(t *testing.T) {
	directory := mocks.NewMockTenantDirectory()
	backend := &mocks.MockProvisionerBackend{ExternalTenantID: "A1", AssistantID: "O1"}
	configurator := mocks.NewMockAssistantConfigurator()
	locker := mocks.NewMockTenantLocker()
	svc := newProvisionService(directory, backend, configurator, locker)

	creds := domain.TenantCredentials{TenantKey: "shop-a", AccessToken: "tok"}
	record, err := svc.EnsureProvisioned(context.Background(), creds)

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if record.ExternalTenantID != "A1" || record.AssistantID != "O1" {
		t.Errorf("unexpected record: %+v", record)
	}
	if backend.ProvisionCalls != 1 {
		t.Errorf("expected 1 backend call, got %d", backend.ProvisionCalls)
	}
	stored := directory.Records["shop-a"]
	if stored.ExternalTenantID != "A1" || stored.AssistantID != "O1" {
		t.Errorf("directory not updated: %+v", stored)
	}
	if locker.HasPendingProvision("shop-a") {
		t.Error("reconciliation marker should be cleared after successful persist")
	}
	if configurator.Configured["O1"] == "" {
		t.Error("expected default instructions to be seeded")
	}
}

func TestEnsureProvisioned_FastPathMakesNoBackendCalls(t *testing.T) {
	directory := mocks.NewMockTenantDirectory()
	directory.Records["shop-a"] = domain.TenantRecord{
		TenantKey: "shop-a", ExternalTenantID: "A1", AssistantID: "O1",
	}
	backend := &mocks.MockProvisionerBackend{ExternalTenantID: "A2", AssistantID: "O2"}
	locker := mocks.NewMockTenantLocker()
	svc := newProvisionService(directory, backend, mocks.NewMockAssistantConfigurator(), locker)

	creds := domain.TenantCredentials{TenantKey: "shop-a", AccessToken: "tok"}
	record, err := svc.EnsureProvisioned(context.Background(), creds)

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if record.ExternalTenantID != "A1" || record.AssistantID != "O1" {
		t.Errorf("fast path must return the stored record unchanged, got %+v", record)
	}
	if backend.ProvisionCalls != 0 {
		t.Errorf("expected 0 backend calls on fast path, got %d", backend.ProvisionCalls)
	}
	if locker.AcquireCalls != 0 {
		t.Errorf("fast path must not take the lock, got %d acquisitions", locker.AcquireCalls)
	}
}

func TestEnsureProvisioned_ConcurrentRequestsProvisionOnce(t *testing.T) {
	directory := mocks.NewMockTenantDirectory()
	backend := &mocks.MockProvisionerBackend{ExternalTenantID: "A1", AssistantID: "O1"}
	locker := mocks.NewMockTenantLocker()
	svc := newProvisionService(directory, backend, mocks.NewMockAssistantConfigurator(), locker)

	creds := domain.TenantCredentials{TenantKey: "shop-a", AccessToken: "tok"}

	const n = 8
	var wg sync.WaitGroup
	records := make([]*domain.TenantRecord, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			records[i], errs[i] = svc.EnsureProvisioned(context.Background(), creds)
		}(i)
	}
	wg.Wait()

	if backend.ProvisionCalls != 1 {
		t.Fatalf("expected exactly 1 backend call under concurrency, got %d", backend.ProvisionCalls)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("request %d failed: %v", i, errs[i])
		}
		if records[i].ExternalTenantID != "A1" || records[i].AssistantID != "O1" {
			t.Errorf("request %d got divergent record: %+v", i, records[i])
		}
	}
}

func TestEnsureProvisioned_DirectoryUnavailableAborts(t *testing.T) {
	directory := mocks.NewMockTenantDirectory()
	directory.GetErr = domain.ErrDirectoryUnavailable
	backend := &mocks.MockProvisionerBackend{ExternalTenantID: "A1", AssistantID: "O1"}
	svc := newProvisionService(directory, backend, mocks.NewMockAssistantConfigurator(), mocks.NewMockTenantLocker())

	creds := domain.TenantCredentials{TenantKey: "shop-a", AccessToken: "tok"}
	_, err := svc.EnsureProvisioned(context.Background(), creds)

	if !errors.Is(err, domain.ErrDirectoryUnavailable) {
		t.Fatalf("expected ErrDirectoryUnavailable, got %v", err)
	}
	if backend.ProvisionCalls != 0 {
		t.Errorf("an unreachable directory must never trigger provisioning, got %d backend calls", backend.ProvisionCalls)
	}
}

func TestEnsureProvisioned_CoordinationStoreOutage(t *testing.T) {
	t.Run("lock acquire failure", func(t *testing.T) {
		directory := mocks.NewMockTenantDirectory()
		backend := &mocks.MockProvisionerBackend{ExternalTenantID: "A1", AssistantID: "O1"}
		locker := mocks.NewMockTenantLocker()
		locker.AcquireErr = errors.New("redis connection refused")
		svc := newProvisionService(directory, backend, mocks.NewMockAssistantConfigurator(), locker)

		creds := domain.TenantCredentials{TenantKey: "shop-a", AccessToken: "tok"}
		_, err := svc.EnsureProvisioned(context.Background(), creds)

		if !errors.Is(err, domain.ErrLockUnavailable) {
			t.Fatalf("expected ErrLockUnavailable, got %v", err)
		}
		if errors.Is(err, domain.ErrDirectoryUnavailable) {
			t.Error("a coordination store outage must not be reported as a directory outage")
		}
		if backend.ProvisionCalls != 0 {
			t.Errorf("expected 0 backend calls, got %d", backend.ProvisionCalls)
		}
	})

	t.Run("marker read failure", func(t *testing.T) {
		directory := mocks.NewMockTenantDirectory()
		backend := &mocks.MockProvisionerBackend{ExternalTenantID: "A1", AssistantID: "O1"}
		locker := mocks.NewMockTenantLocker()
		locker.GetErr = errors.New("redis connection refused")
		svc := newProvisionService(directory, backend, mocks.NewMockAssistantConfigurator(), locker)

		creds := domain.TenantCredentials{TenantKey: "shop-a", AccessToken: "tok"}
		_, err := svc.EnsureProvisioned(context.Background(), creds)

		if !errors.Is(err, domain.ErrLockUnavailable) {
			t.Fatalf("expected ErrLockUnavailable, got %v", err)
		}
		if backend.ProvisionCalls != 0 {
			t.Errorf("the backend must not be called when the marker cannot be checked, got %d calls", backend.ProvisionCalls)
		}
	})
}

func TestEnsureProvisioned_BackendFailurePersistsNothing(t *testing.T) {
	directory := mocks.NewMockTenantDirectory()
	backend := &mocks.MockProvisionerBackend{ProvisionErr: domain.ErrProvisioningUnavailable}
	locker := mocks.NewMockTenantLocker()
	svc := newProvisionService(directory, backend, mocks.NewMockAssistantConfigurator(), locker)

	creds := domain.TenantCredentials{TenantKey: "shop-a", AccessToken: "tok"}
	_, err := svc.EnsureProvisioned(context.Background(), creds)

	if !errors.Is(err, domain.ErrProvisioningUnavailable) {
		t.Fatalf("expected ErrProvisioningUnavailable, got %v", err)
	}
	if directory.SetCalls != 0 {
		t.Error("nothing may be persisted when the backend call fails")
	}
	if locker.HasPendingProvision("shop-a") {
		t.Error("no reconciliation marker may exist when the backend call fails")
	}
}

func TestEnsureProvisioned_PersistFailureRecoversWithoutSecondBackendCall(t *testing.T) {
	directory := mocks.NewMockTenantDirectory()
	directory.SetErr = errors.New("metafield write rejected")
	backend := &mocks.MockProvisionerBackend{ExternalTenantID: "A1", AssistantID: "O1"}
	locker := mocks.NewMockTenantLocker()
	svc := newProvisionService(directory, backend, mocks.NewMockAssistantConfigurator(), locker)

	creds := domain.TenantCredentials{TenantKey: "shop-a", AccessToken: "tok"}
	_, err := svc.EnsureProvisioned(context.Background(), creds)

	if !errors.Is(err, domain.ErrPersistenceAfterProvision) {
		t.Fatalf("expected ErrPersistenceAfterProvision, got %v", err)
	}
	if !locker.HasPendingProvision("shop-a") {
		t.Fatal("reconciliation marker must survive a persist failure")
	}

	// Retry with a healthy directory: the marker supplies the ids and the
	// backend must not be called again.
	directory.SetErr = nil
	record, err := svc.EnsureProvisioned(context.Background(), creds)
	if err != nil {
		t.Fatalf("expected recovery to succeed, got %v", err)
	}
	if backend.ProvisionCalls != 1 {
		t.Fatalf("expected exactly 1 backend call across retries, got %d", backend.ProvisionCalls)
	}
	if record.ExternalTenantID != "A1" || record.AssistantID != "O1" {
		t.Errorf("recovered record mismatch: %+v", record)
	}
	if locker.HasPendingProvision("shop-a") {
		t.Error("reconciliation marker should be cleared after recovery")
	}
}

func TestEnsureProvisioned_SeedingFailureDoesNotRollBack(t *testing.T) {
	directory := mocks.NewMockTenantDirectory()
	backend := &mocks.MockProvisionerBackend{ExternalTenantID: "A1", AssistantID: "O1"}
	configurator := mocks.NewMockAssistantConfigurator()
	configurator.ConfigureErr = errors.New("assistant API down")
	svc := newProvisionService(directory, backend, configurator, mocks.NewMockTenantLocker())

	creds := domain.TenantCredentials{TenantKey: "shop-a", AccessToken: "tok"}
	record, err := svc.EnsureProvisioned(context.Background(), creds)

	if err != nil {
		t.Fatalf("seeding is best-effort and must not fail provisioning, got %v", err)
	}
	if !record.Provisioned() {
		t.Errorf("expected a provisioned record, got %+v", record)
	}
}

func TestOffboard_IdempotentOnRetrigger(t *testing.T) {
	backend := &mocks.MockProvisionerBackend{}
	svc := newProvisionService(mocks.NewMockTenantDirectory(), backend, mocks.NewMockAssistantConfigurator(), mocks.NewMockTenantLocker())

	if err := svc.Offboard(context.Background(), "shop-a"); err != nil {
		t.Fatalf("first offboard failed: %v", err)
	}
	if err := svc.Offboard(context.Background(), "shop-a"); err != nil {
		t.Fatalf("retriggered offboard must succeed: %v", err)
	}
	if backend.DeprovisionCalls != 2 {
		t.Errorf("expected 2 deprovision calls, got %d", backend.DeprovisionCalls)
	}
}
