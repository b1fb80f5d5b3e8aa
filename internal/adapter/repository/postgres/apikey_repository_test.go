package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestAPIKeyRepo(ttl time.Duration, lookup func(ctx context.Context, key string) (bool, error)) *APIKeyRepository {
	repo := NewAPIKeyRepository(nil, slog.New(slog.NewTextHandler(io.Discard, nil)), ttl, nil)
	repo.lookup = lookup
	return repo
}

func TestAPIKeyRepository_CachesLookups(t *testing.T) {
	var calls int32
	repo := newTestAPIKeyRepo(time.Minute, func(ctx context.Context, key string) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return key == "good-key", nil
	})

	for i := 0; i < 3; i++ {
		valid, err := repo.IsValid(context.Background(), "good-key")
		if err != nil {
			t.Fatalf("IsValid failed: %v", err)
		}
		if !valid {
			t.Fatal("expected key to be valid")
		}
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("expected 1 database lookup across repeated calls, got %d", n)
	}

	// Negative answers are cached too.
	for i := 0; i < 2; i++ {
		valid, err := repo.IsValid(context.Background(), "bad-key")
		if err != nil {
			t.Fatalf("IsValid failed: %v", err)
		}
		if valid {
			t.Fatal("expected key to be invalid")
		}
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("expected 2 lookups total, got %d", n)
	}
}

func TestAPIKeyRepository_ConcurrentMissesCollapse(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	repo := newTestAPIKeyRepo(time.Minute, func(ctx context.Context, key string) (bool, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return true, nil
	})

	const n = 8
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if valid, err := repo.IsValid(context.Background(), "good-key"); err != nil || !valid {
				t.Errorf("IsValid = (%v, %v)", valid, err)
			}
		}()
	}

	// Give the goroutines time to pile onto the in-flight lookup.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected concurrent misses to collapse into 1 lookup, got %d", got)
	}
}

func TestAPIKeyRepository_ErrorsAreNotCached(t *testing.T) {
	var calls int32
	repo := newTestAPIKeyRepo(time.Minute, func(ctx context.Context, key string) (bool, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return false, errors.New("postgres down")
		}
		return true, nil
	})

	if _, err := repo.IsValid(context.Background(), "good-key"); err == nil {
		t.Fatal("expected first lookup to fail")
	}
	valid, err := repo.IsValid(context.Background(), "good-key")
	if err != nil {
		t.Fatalf("expected retry to hit the database again, got %v", err)
	}
	if !valid {
		t.Error("expected key to be valid after retry")
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("expected 2 lookups, got %d", n)
	}
}

func TestAPIKeyRepository_ExpiredEntriesRefresh(t *testing.T) {
	var calls int32
	repo := newTestAPIKeyRepo(-time.Second, func(ctx context.Context, key string) (bool, error) {
		atomic.AddInt32(&calls, 1)
		return true, nil
	})

	repo.IsValid(context.Background(), "good-key")
	repo.IsValid(context.Background(), "good-key")

	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("expected an expired entry to trigger a fresh lookup, got %d lookups", n)
	}
}
