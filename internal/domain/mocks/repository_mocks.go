package mocks

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/user/assistor/internal/domain"
)

// MockTenantDirectory is an in-memory implementation of domain.TenantDirectory
// for testing.
type MockTenantDirectory struct {
	mu       sync.Mutex
	Records  map[string]domain.TenantRecord
	GetErr   error
	SetErr   error
	GetCalls int
	SetCalls int
}

func NewMockTenantDirectory() *MockTenantDirectory {
	return &MockTenantDirectory{Records: make(map[string]domain.TenantRecord)}
}

func (m *MockTenantDirectory) Get(ctx context.Context, creds domain.TenantCredentials) (*domain.TenantRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	record, found := m.Records[creds.TenantKey]
	if !found {
		return nil, domain.ErrTenantNotFound
	}
	out := record
	return &out, nil
}

func (m *MockTenantDirectory) Set(ctx context.Context, creds domain.TenantCredentials, record domain.TenantRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetCalls++
	if m.SetErr != nil {
		return m.SetErr
	}
	existing := m.Records[creds.TenantKey]
	existing.TenantKey = creds.TenantKey
	if record.ExternalTenantID != "" {
		existing.ExternalTenantID = record.ExternalTenantID
	}
	if record.AssistantID != "" {
		existing.AssistantID = record.AssistantID
	}
	m.Records[creds.TenantKey] = existing
	return nil
}

// MockShopInfoReader returns a fixed shop descriptor.
type MockShopInfoReader struct {
	Descriptor domain.ShopDescriptor
	Err        error
}

func (m *MockShopInfoReader) ShopInfo(ctx context.Context, creds domain.TenantCredentials) (*domain.ShopDescriptor, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	out := m.Descriptor
	return &out, nil
}

// MockProvisionerBackend counts Provision calls; the counter is how tests
// assert the at-most-once backend guarantee.
type MockProvisionerBackend struct {
	mu               sync.Mutex
	ExternalTenantID string
	AssistantID      string
	ProvisionErr     error
	DeprovisionErr   error
	ProvisionCalls   int
	DeprovisionCalls int
}

func (m *MockProvisionerBackend) Provision(ctx context.Context, tenantKey, accessToken string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProvisionCalls++
	if m.ProvisionErr != nil {
		return "", "", m.ProvisionErr
	}
	return m.ExternalTenantID, m.AssistantID, nil
}

func (m *MockProvisionerBackend) Deprovision(ctx context.Context, tenantKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeprovisionCalls++
	return m.DeprovisionErr
}

// MockAssistantConfigurator records configuration calls.
type MockAssistantConfigurator struct {
	mu             sync.Mutex
	Configured     map[string]string
	InstructionsIn string
	ConfigureErr   error
}

func NewMockAssistantConfigurator() *MockAssistantConfigurator {
	return &MockAssistantConfigurator{Configured: make(map[string]string)}
}

func (m *MockAssistantConfigurator) Instructions(ctx context.Context, assistantID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Configured[assistantID], nil
}

func (m *MockAssistantConfigurator) Configure(ctx context.Context, assistantID, instructions string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConfigureErr != nil {
		return m.ConfigureErr
	}
	m.Configured[assistantID] = instructions
	return nil
}

// MockTenantLocker implements real mutual exclusion in memory so concurrency
// tests exercise the same contention paths as the Redis lock.
type MockTenantLocker struct {
	mu           sync.Mutex
	held         map[string]string
	pending      map[string]domain.TenantRecord
	AcquireErr   error
	PutErr       error
	GetErr       error
	AcquireCalls int
}

func NewMockTenantLocker() *MockTenantLocker {
	return &MockTenantLocker{
		held:    make(map[string]string),
		pending: make(map[string]domain.TenantRecord),
	}
}

func (m *MockTenantLocker) Acquire(ctx context.Context, tenantKey string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AcquireCalls++
	if m.AcquireErr != nil {
		return "", m.AcquireErr
	}
	if _, taken := m.held[tenantKey]; taken {
		return "", domain.ErrLockHeld
	}
	token := tenantKey + "-token"
	m.held[tenantKey] = token
	return token, nil
}

func (m *MockTenantLocker) Release(ctx context.Context, tenantKey, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[tenantKey] == token {
		delete(m.held, tenantKey)
	}
	return nil
}

func (m *MockTenantLocker) PutPendingProvision(ctx context.Context, tenantKey string, record domain.TenantRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutErr != nil {
		return m.PutErr
	}
	m.pending[tenantKey] = record
	return nil
}

func (m *MockTenantLocker) GetPendingProvision(ctx context.Context, tenantKey string) (*domain.TenantRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	record, found := m.pending[tenantKey]
	if !found {
		return nil, nil
	}
	out := record
	return &out, nil
}

func (m *MockTenantLocker) ClearPendingProvision(ctx context.Context, tenantKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, tenantKey)
	return nil
}

// HasPendingProvision reports whether a reconciliation marker exists.
func (m *MockTenantLocker) HasPendingProvision(tenantKey string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, found := m.pending[tenantKey]
	return found
}

// SeedPendingProvision installs a reconciliation marker directly.
func (m *MockTenantLocker) SeedPendingProvision(tenantKey string, record domain.TenantRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[tenantKey] = record
}

// MockJobQueue is an in-memory implementation of domain.JobQueue.
type MockJobQueue struct {
	mu            sync.Mutex
	Enqueued      []domain.TrainingJob
	DequeueResult []domain.TrainingJob
	ClaimResult   []domain.TrainingJob
	Acked         []string
	DeadLettered  []domain.TrainingJob
	EnqueueErr    error
	DequeueErr    error
	ClaimErr      error
	AckErr        error
	DeadLetterErr error
	nextID        int
}

func (m *MockJobQueue) Enqueue(ctx context.Context, job domain.TrainingJob) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EnqueueErr != nil {
		return "", m.EnqueueErr
	}
	m.nextID++
	job.ID = "job-" + strconv.Itoa(m.nextID)
	m.Enqueued = append(m.Enqueued, job)
	return job.ID, nil
}

func (m *MockJobQueue) Dequeue(ctx context.Context, group, consumer string, count int) ([]domain.TrainingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DequeueErr != nil {
		return nil, m.DequeueErr
	}
	jobs := m.DequeueResult
	m.DequeueResult = nil
	return jobs, nil
}

func (m *MockJobQueue) Claim(ctx context.Context, group, consumer string, minIdle time.Duration, count int) ([]domain.TrainingJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClaimErr != nil {
		return nil, m.ClaimErr
	}
	jobs := m.ClaimResult
	m.ClaimResult = nil
	return jobs, nil
}

func (m *MockJobQueue) Ack(ctx context.Context, group string, messageIDs ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AckErr != nil {
		return m.AckErr
	}
	m.Acked = append(m.Acked, messageIDs...)
	return nil
}

func (m *MockJobQueue) MoveToDeadLetter(ctx context.Context, job domain.TrainingJob, cause string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeadLetterErr != nil {
		return m.DeadLetterErr
	}
	m.DeadLettered = append(m.DeadLettered, job)
	return nil
}

// MockComputeInvoker counts invocations and can fail a fixed number of times.
type MockComputeInvoker struct {
	mu    sync.Mutex
	Err   error
	Calls int
	Delay time.Duration
}

func (m *MockComputeInvoker) CreateEmbeddings(ctx context.Context, tokenRef, tenantKey string) error {
	m.mu.Lock()
	m.Calls++
	err := m.Err
	delay := m.Delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// CallCount returns how many invocations were made.
func (m *MockComputeInvoker) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// MockVectorStatsReader returns fixed per-namespace counts.
type MockVectorStatsReader struct {
	Counts map[string]int64
	Err    error
}

func (m *MockVectorStatsReader) NamespaceCount(ctx context.Context, namespace string) (int64, error) {
	if m.Err != nil {
		return 0, m.Err
	}
	return m.Counts[namespace], nil
}

// MockJobRunRecorder captures recorded runs.
type MockJobRunRecorder struct {
	mu        sync.Mutex
	Runs      []domain.JobRun
	RecordErr error
}

func (m *MockJobRunRecorder) RecordRun(ctx context.Context, run domain.JobRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.Runs = append(m.Runs, run)
	return nil
}

func (m *MockJobRunRecorder) ListRuns(ctx context.Context, tenantKey string, limit int) ([]domain.JobRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var runs []domain.JobRun
	for _, run := range m.Runs {
		if run.TenantKey == tenantKey {
			runs = append(runs, run)
		}
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// MockAPIKeyRepository validates against a fixed key set.
type MockAPIKeyRepository struct {
	ValidKeys map[string]bool
	Err       error
}

func (m *MockAPIKeyRepository) IsValid(ctx context.Context, key string) (bool, error) {
	if m.Err != nil {
		return false, m.Err
	}
	return m.ValidKeys[key], nil
}
