package domain

// TenantRecord holds the provisioning metadata for one storefront tenant.
// A record is considered provisioned once both downstream identifiers are set;
// from that point it is never mutated except by explicit offboarding.
type TenantRecord struct {
	TenantKey        string `json:"tenant_key"`
	ExternalTenantID string `json:"external_tenant_id,omitempty"`
	AssistantID      string `json:"assistant_id,omitempty"`
}

// Provisioned reports whether both downstream identifiers exist.
func (r *TenantRecord) Provisioned() bool {
	return r != nil && r.ExternalTenantID != "" && r.AssistantID != ""
}

// TenantCredentials identifies a tenant and carries the access token needed
// to talk to its installation of the platform metadata store.
type TenantCredentials struct {
	TenantKey   string
	AccessToken string
}

// ShopDescriptor is the subset of storefront metadata used to seed the
// assistant's default instructions.
type ShopDescriptor struct {
	Name        string
	URL         string
	Description string
	Locale      string
}
