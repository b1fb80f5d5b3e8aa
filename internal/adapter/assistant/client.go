// Package assistant is the client for the assistant configuration API.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultClientTimeout = 30 * time.Second
	betaHeader           = "assistants=v1"
)

// Client reads and updates an assistant's instructions and tool definitions.
type Client struct {
	http    *http.Client
	logger  *slog.Logger
	baseURL string
	apiKey  string
}

// NewClient creates an assistant configuration client.
func NewClient(baseURL, apiKey string, logger *slog.Logger) *Client {
	return &Client{
		http:    &http.Client{Timeout: defaultClientTimeout},
		logger:  logger.With("component", "assistant_client"),
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

type assistantPayload struct {
	Instructions string `json:"instructions"`
	Tools        []Tool `json:"tools,omitempty"`
}

// Tool is one tool definition attached to an assistant.
type Tool struct {
	Type     string        `json:"type"`
	Function *ToolFunction `json:"function,omitempty"`
}

// ToolFunction describes a callable function tool.
type ToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Strict      bool            `json:"strict"`
	Parameters  json.RawMessage `json:"parameters"`
}

// defaultTools returns the tool set every newly provisioned assistant starts
// with: product recommendation lookup.
func defaultTools() []Tool {
	return []Tool{
		{
			Type: "function",
			Function: &ToolFunction{
				Name:        "get_recommended_products",
				Description: "Recommend the right products for the customer",
				Strict:      true,
				Parameters: json.RawMessage(`{
					"type": "object",
					"properties": {
						"customer_product_description": {
							"type": "string",
							"description": "Description of what the customer is looking for."
						}
					},
					"additionalProperties": false,
					"required": ["customer_product_description"]
				}`),
			},
		},
	}
}

// Instructions returns the assistant's current instructions text.
func (c *Client) Instructions(ctx context.Context, assistantID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.assistantURL(assistantID), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build assistant request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("assistant request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("assistant API returned status %d", resp.StatusCode)
	}

	var payload assistantPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode assistant response: %w", err)
	}
	return payload.Instructions, nil
}

// Configure replaces the assistant's instructions and installs the default
// tool definitions.
func (c *Client) Configure(ctx context.Context, assistantID, instructions string) error {
	body, err := json.Marshal(assistantPayload{
		Instructions: instructions,
		Tools:        defaultTools(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal assistant update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.assistantURL(assistantID), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build assistant request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("assistant request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("assistant API returned status %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}

func (c *Client) assistantURL(assistantID string) string {
	return fmt.Sprintf("%s/assistants/%s", c.baseURL, assistantID)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("OpenAI-Beta", betaHeader)
}
