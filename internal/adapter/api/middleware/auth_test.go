package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/user/assistor/internal/domain/mocks"
)

func TestAuthMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		apiKey     string
		repo       *mocks.MockAPIKeyRepository
		wantStatus int
	}{
		{
			name:       "valid key passes",
			apiKey:     "good-key",
			repo:       &mocks.MockAPIKeyRepository{ValidKeys: map[string]bool{"good-key": true}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing key is unauthorized",
			apiKey:     "",
			repo:       &mocks.MockAPIKeyRepository{ValidKeys: map[string]bool{}},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown key is unauthorized",
			apiKey:     "bad-key",
			repo:       &mocks.MockAPIKeyRepository{ValidKeys: map[string]bool{"good-key": true}},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "repository failure is a server error",
			apiKey:     "good-key",
			repo:       &mocks.MockAPIKeyRepository{Err: errors.New("postgres down")},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Auth(tt.repo, logger)(next)

			req := httptest.NewRequest(http.MethodGet, "/v1/tenants/shop-a/runs", nil)
			if tt.apiKey != "" {
				req.Header.Set(APIKeyHeader, tt.apiKey)
			}
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rr.Code)
			}
		})
	}
}
