// Package provisioner is the client for the external backend that mints a
// tenant's downstream resources. The init workflow is not idempotent
// downstream, so callers serialize it behind the per-tenant provisioning lock.
package provisioner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/user/assistor/internal/domain"
)

const defaultClientTimeout = 15 * time.Second

// Client calls the provisioning backend's init and deinit workflows.
type Client struct {
	http            *http.Client
	logger          *slog.Logger
	initEndpoint    string
	deinitEndpoint  string
	apiKey          string
}

// NewClient creates a provisioning backend client.
func NewClient(initEndpoint, deinitEndpoint, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		http:           &http.Client{Timeout: defaultClientTimeout},
		logger:         logger.With("component", "provisioner_client"),
		initEndpoint:   initEndpoint,
		deinitEndpoint: deinitEndpoint,
		apiKey:         apiKey,
	}
}

type initRequest struct {
	TenantDomain string `json:"tenant_domain"`
	TenantToken  string `json:"tenant_token"`
}

type initResponse struct {
	Response struct {
		AssistorID        string `json:"assistor_id"`
		OpenAIAssistantID string `json:"openai_assistant_id"`
	} `json:"response"`
}

// Provision asks the backend to create the tenant's downstream resources and
// returns the minted id pair. Any transport error or non-2xx status maps to
// ErrProvisioningUnavailable; nothing is persisted by this call.
func (c *Client) Provision(ctx context.Context, tenantKey, accessToken string) (string, string, error) {
	payload, err := json.Marshal(initRequest{TenantDomain: tenantKey, TenantToken: accessToken})
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal provision request: %w", err)
	}

	resp, err := c.post(ctx, c.initEndpoint, payload)
	if err != nil {
		c.logger.Error("provisioning backend unreachable", "tenant_key", tenantKey, "op", "provision", "error", err)
		return "", "", fmt.Errorf("%w: %v", domain.ErrProvisioningUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error("provisioning backend rejected request",
			"tenant_key", tenantKey, "op", "provision", "status", resp.StatusCode, "body", string(raw))
		return "", "", fmt.Errorf("%w: status %d", domain.ErrProvisioningUnavailable, resp.StatusCode)
	}

	var result initResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", fmt.Errorf("%w: invalid response: %v", domain.ErrProvisioningUnavailable, err)
	}
	if result.Response.AssistorID == "" || result.Response.OpenAIAssistantID == "" {
		return "", "", fmt.Errorf("%w: response missing ids", domain.ErrProvisioningUnavailable)
	}

	return result.Response.AssistorID, result.Response.OpenAIAssistantID, nil
}

type deinitRequest struct {
	TenantDomain string `json:"tenant_domain"`
}

// Deprovision asks the backend to tear down the tenant's resources. The
// backend treats an unknown tenant as already removed, so retriggering is
// safe.
func (c *Client) Deprovision(ctx context.Context, tenantKey string) error {
	payload, err := json.Marshal(deinitRequest{TenantDomain: tenantKey})
	if err != nil {
		return fmt.Errorf("failed to marshal deprovision request: %w", err)
	}

	resp, err := c.post(ctx, c.deinitEndpoint, payload)
	if err != nil {
		c.logger.Error("provisioning backend unreachable", "tenant_key", tenantKey, "op", "deprovision", "error", err)
		return fmt.Errorf("%w: %v", domain.ErrProvisioningUnavailable, err)
	}
	defer resp.Body.Close()

	// 404 means the tenant was never provisioned or already removed.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", domain.ErrProvisioningUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return c.http.Do(req)
}
