// Package compute invokes the external batch-compute function that embeds a
// tenant's catalog. The invocation is synchronous request/response even
// though the underlying execution is serverless; once started, the function
// runs to completion or fails on its own and cannot be cancelled mid-flight.
package compute

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/user/assistor/internal/domain"
)

// Client calls the batch-compute function endpoint.
type Client struct {
	http        *http.Client
	logger      *slog.Logger
	functionURL string
}

// NewClient creates a compute function client. The per-call deadline comes
// from the caller's context, not from the HTTP client.
func NewClient(functionURL string, logger *slog.Logger) *Client {
	return &Client{
		http:        &http.Client{},
		logger:      logger.With("component", "compute_client"),
		functionURL: functionURL,
	}
}

type invokeRequest struct {
	AuthToken string `json:"auth_token"`
	TenantID  string `json:"tenant_id"`
}

type invokeResponse struct {
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CreateEmbeddings runs the embedding computation for one tenant and blocks
// until it finishes. A deadline overrun maps to ErrComputeTimeout; transport
// errors, non-2xx statuses, and non-success payloads map to ErrComputeFailed.
func (c *Client) CreateEmbeddings(ctx context.Context, tokenRef, tenantKey string) error {
	payload, err := json.Marshal(invokeRequest{AuthToken: tokenRef, TenantID: tenantKey})
	if err != nil {
		return fmt.Errorf("failed to marshal compute request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.functionURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build compute request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %v", domain.ErrComputeTimeout, err)
		}
		return fmt.Errorf("%w: %v", domain.ErrComputeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: status %d: %s", domain.ErrComputeFailed, resp.StatusCode, string(raw))
	}

	var result invokeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("%w: invalid response: %v", domain.ErrComputeFailed, err)
	}
	if result.Success != nil && !*result.Success {
		return fmt.Errorf("%w: %s", domain.ErrComputeFailed, valueOr(result.Error, "function reported failure"))
	}
	return nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
