package platform

import (
	"context"
	"fmt"

	"github.com/user/assistor/internal/domain"
)

// Get reads the tenant's provisioning metadata from the installation's
// metafields. A reachable store with no metafields means the tenant was never
// provisioned; any transport or API failure is reported as
// ErrDirectoryUnavailable and must not be read as "unprovisioned".
func (c *Client) Get(ctx context.Context, creds domain.TenantCredentials) (*domain.TenantRecord, error) {
	data, err := c.installation(ctx, creds.TenantKey, creds.AccessToken)
	if err != nil {
		c.logger.Error("tenant directory read failed", "tenant_key", creds.TenantKey, "op", "directory_get", "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrDirectoryUnavailable, err)
	}

	edges := data.CurrentAppInstallation.Metafields.Edges
	if len(edges) == 0 {
		return nil, domain.ErrTenantNotFound
	}

	record := &domain.TenantRecord{TenantKey: creds.TenantKey}
	for _, edge := range edges {
		switch edge.Node.Key {
		case keyExternalTenantID:
			record.ExternalTenantID = edge.Node.Value
		case keyAssistantID:
			record.AssistantID = edge.Node.Value
		}
	}
	if record.ExternalTenantID == "" && record.AssistantID == "" {
		return nil, domain.ErrTenantNotFound
	}
	return record, nil
}

type metafieldsSetData struct {
	MetafieldsSet struct {
		UserErrors []struct {
			Field   []string `json:"field"`
			Message string   `json:"message"`
		} `json:"userErrors"`
	} `json:"metafieldsSet"`
}

// Set upserts only the non-empty id fields of record as installation
// metafields. Both ids are written in a single mutation so a provisioned
// record can never be half-persisted by this call.
func (c *Client) Set(ctx context.Context, creds domain.TenantCredentials, record domain.TenantRecord) error {
	data, err := c.installation(ctx, creds.TenantKey, creds.AccessToken)
	if err != nil {
		c.logger.Error("tenant directory write failed resolving installation",
			"tenant_key", creds.TenantKey, "op", "directory_set", "error", err)
		return fmt.Errorf("%w: %v", domain.ErrDirectoryUnavailable, err)
	}
	ownerID := data.CurrentAppInstallation.ID

	var inputs []map[string]any
	for key, value := range map[string]string{
		keyExternalTenantID: record.ExternalTenantID,
		keyAssistantID:      record.AssistantID,
	} {
		if value == "" {
			continue
		}
		inputs = append(inputs, map[string]any{
			"namespace": metafieldNamespace,
			"key":       key,
			"type":      "single_line_text_field",
			"value":     value,
			"ownerId":   ownerID,
		})
	}
	if len(inputs) == 0 {
		return nil
	}

	var result metafieldsSetData
	err = c.execute(ctx, creds.TenantKey, creds.AccessToken, metafieldsSetMutation,
		map[string]any{"metafieldsSetInput": inputs}, &result)
	if err != nil {
		c.logger.Error("tenant directory write failed", "tenant_key", creds.TenantKey, "op", "directory_set", "error", err)
		return fmt.Errorf("%w: %v", domain.ErrDirectoryUnavailable, err)
	}
	if errs := result.MetafieldsSet.UserErrors; len(errs) > 0 {
		c.logger.Error("tenant directory write rejected",
			"tenant_key", creds.TenantKey, "op", "directory_set", "error", errs[0].Message)
		return fmt.Errorf("%w: metafieldsSet: %s", domain.ErrDirectoryUnavailable, errs[0].Message)
	}
	return nil
}

type shopInfoData struct {
	Shop struct {
		Name          string `json:"name"`
		URL           string `json:"url"`
		Description   string `json:"description"`
		PrimaryLocale string `json:"primaryLocale"`
	} `json:"shop"`
}

// ShopInfo fetches the storefront descriptor used to seed default assistant
// instructions.
func (c *Client) ShopInfo(ctx context.Context, creds domain.TenantCredentials) (*domain.ShopDescriptor, error) {
	var data shopInfoData
	if err := c.execute(ctx, creds.TenantKey, creds.AccessToken, shopInfoQuery, nil, &data); err != nil {
		return nil, fmt.Errorf("failed to fetch shop info: %w", err)
	}
	return &domain.ShopDescriptor{
		Name:        data.Shop.Name,
		URL:         data.Shop.URL,
		Description: data.Shop.Description,
		Locale:      data.Shop.PrimaryLocale,
	}, nil
}
