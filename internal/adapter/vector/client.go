// Package vector is the read-only stats client for the vector store holding
// the per-tenant embedding namespaces.
package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultClientTimeout = 10 * time.Second

// Client queries the vector store's index statistics.
type Client struct {
	http   *http.Client
	logger *slog.Logger
	host   string
	apiKey string
}

// NewClient creates a vector store stats client.
func NewClient(host, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		http:   &http.Client{Timeout: defaultClientTimeout},
		logger: logger.With("component", "vector_client"),
		host:   strings.TrimRight(host, "/"),
		apiKey: apiKey,
	}
}

type indexStats struct {
	Namespaces map[string]struct {
		RecordCount int64 `json:"recordCount"`
	} `json:"namespaces"`
}

// NamespaceCount returns how many vectors exist in the tenant's namespace.
// A namespace that does not exist yet counts as 0; only a failure to reach
// the store is an error.
func (c *Client) NamespaceCount(ctx context.Context, namespace string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/describe_index_stats", strings.NewReader("{}"))
	if err != nil {
		return 0, fmt.Errorf("failed to build stats request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("vector store stats request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("vector store returned status %d", resp.StatusCode)
	}

	var stats indexStats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return 0, fmt.Errorf("failed to decode index stats: %w", err)
	}

	ns, ok := stats.Namespaces[namespace]
	if !ok {
		return 0, nil
	}
	return ns.RecordCount, nil
}
