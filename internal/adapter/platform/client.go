// Package platform implements the tenant directory on top of the storefront
// platform's per-installation metafield store, via its Admin GraphQL API.
package platform

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
	metafieldNamespace   = "assistor"
	keyExternalTenantID  = "assistor_id"
	keyAssistantID       = "openai_assistant_id"
	accessTokenHeader    = "X-Shopify-Access-Token"
	defaultClientTimeout = 10 * time.Second
)

const installationQuery = `query getAppInstallation {
	currentAppInstallation {
		id
		metafields(first: 5, namespace: "assistor") {
			edges {
				node {
					key
					value
				}
			}
		}
	}
}`

const metafieldsSetMutation = `mutation CreateAppDataMetafield($metafieldsSetInput: [MetafieldsSetInput!]!) {
	metafieldsSet(metafields: $metafieldsSetInput) {
		metafields {
			id
			namespace
			key
			value
		}
		userErrors {
			field
			message
		}
	}
}`

const shopInfoQuery = `query {
	shop {
		name
		url
		description
		primaryLocale
	}
}`

// Client talks to the platform Admin GraphQL API for one installation at a
// time; credentials are supplied per call because every tenant has its own
// endpoint and token.
type Client struct {
	http       *http.Client
	logger     *slog.Logger
	apiVersion string

	// baseURL overrides the per-tenant endpoint; used in tests.
	baseURL string
}

// NewClient creates a platform Admin API client.
func NewClient(apiVersion string, logger *slog.Logger) *Client {
	return &Client{
		http:       &http.Client{Timeout: defaultClientTimeout},
		logger:     logger.With("component", "platform_client"),
		apiVersion: apiVersion,
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors,omitempty"`
}

func (c *Client) endpoint(tenantKey string) string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return fmt.Sprintf("https://%s/admin/api/%s/graphql.json", tenantKey, c.apiVersion)
}

func (c *Client) execute(ctx context.Context, tenantKey, accessToken, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(tenantKey), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(accessTokenHeader, accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("platform request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("platform returned status %d: %s", resp.StatusCode, string(raw))
	}

	var envelope graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode graphql response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to unmarshal graphql data: %w", err)
		}
	}
	return nil
}

type installationData struct {
	CurrentAppInstallation struct {
		ID         string `json:"id"`
		Metafields struct {
			Edges []struct {
				Node struct {
					Key   string `json:"key"`
					Value string `json:"value"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"metafields"`
	} `json:"currentAppInstallation"`
}

func (c *Client) installation(ctx context.Context, tenantKey, accessToken string) (*installationData, error) {
	var data installationData
	if err := c.execute(ctx, tenantKey, accessToken, installationQuery, nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}
