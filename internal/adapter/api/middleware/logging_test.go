package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLoggingMiddleware(t *testing.T) {
	capture := func(status int, path string) map[string]any {
		t.Helper()
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))

		handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			w.Write([]byte("body"))
		}))

		req := httptest.NewRequest(http.MethodGet, path, nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		var line map[string]any
		if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
			t.Fatalf("invalid log line %q: %v", buf.String(), err)
		}
		return line
	}

	t.Run("tenant routes carry the tenant key", func(t *testing.T) {
		line := capture(http.StatusOK, "/v1/tenants/shop-a.example.com/runs")
		if line["tenant_key"] != "shop-a.example.com" {
			t.Errorf("expected tenant_key field, got %v", line)
		}
		if line["status"] != float64(http.StatusOK) {
			t.Errorf("expected status 200, got %v", line["status"])
		}
		if line["bytes"] != float64(4) {
			t.Errorf("expected 4 response bytes, got %v", line["bytes"])
		}
	})

	t.Run("provision route carries no tenant key", func(t *testing.T) {
		line := capture(http.StatusOK, "/v1/tenants/provision")
		if _, found := line["tenant_key"]; found {
			t.Errorf("provision carries the key in the body, not the path: %v", line)
		}
	})

	t.Run("server errors log at error level", func(t *testing.T) {
		line := capture(http.StatusInternalServerError, "/v1/tenants/shop-a/runs")
		if line["level"] != "ERROR" {
			t.Errorf("expected ERROR level for a 5xx, got %v", line["level"])
		}
	})
}

func TestTenantFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/v1/tenants/shop-a.example.com/training", "shop-a.example.com"},
		{"/v1/tenants/shop-a.example.com", "shop-a.example.com"},
		{"/v1/tenants/provision", ""},
		{"/health", ""},
		{"/v1/tenants/", ""},
	}
	for _, tt := range tests {
		if got := tenantFromPath(tt.path); got != tt.want {
			t.Errorf("tenantFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
