package compute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/user/assistor/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreateEmbeddings_Success(t *testing.T) {
	var gotBody invokeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"success": true}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, discardLogger())

	if err := client.CreateEmbeddings(context.Background(), "tok", "shop-a"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if gotBody.AuthToken != "tok" || gotBody.TenantID != "shop-a" {
		t.Errorf("unexpected request body: %+v", gotBody)
	}
}

func TestCreateEmbeddings_FunctionReportedFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"success": false, "error": "catalog fetch failed"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, discardLogger())

	err := client.CreateEmbeddings(context.Background(), "tok", "shop-a")
	if !errors.Is(err, domain.ErrComputeFailed) {
		t.Fatalf("expected ErrComputeFailed, got %v", err)
	}
}

func TestCreateEmbeddings_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invocation error", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, discardLogger())

	err := client.CreateEmbeddings(context.Background(), "tok", "shop-a")
	if !errors.Is(err, domain.ErrComputeFailed) {
		t.Fatalf("expected ErrComputeFailed, got %v", err)
	}
}

func TestCreateEmbeddings_DeadlineOverrunIsTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewClient(server.URL, discardLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := client.CreateEmbeddings(ctx, "tok", "shop-a")
	if !errors.Is(err, domain.ErrComputeTimeout) {
		t.Fatalf("expected ErrComputeTimeout, got %v", err)
	}
}
