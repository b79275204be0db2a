package domain

// CredentialSource records which tier of the resolution chain produced a
// credential, for observability.
type CredentialSource string

const (
	CredentialSourceOverride    CredentialSource = "override"
	CredentialSourceRequest     CredentialSource = "request"
	CredentialSourceStore       CredentialSource = "store"
	CredentialSourceEnvironment CredentialSource = "environment"
)

// Credential is a resolved per-provider API credential.
type Credential struct {
	Provider  string           `json:"provider"`
	Token     string           `json:"-"`
	AccountID string           `json:"accountId,omitempty"`
	Source    CredentialSource `json:"source"`
	TenantID  string           `json:"tenantId,omitempty"`
}

// ValidateTenantAccess reports whether a credential may be used by a request
// scoped to tenantID. A tenant-scoped credential is usable by an unscoped
// request, but never by a request scoped to a different tenant.
func ValidateTenantAccess(cred *Credential, tenantID string) bool {
	if cred == nil {
		return false
	}
	if cred.TenantID == "" || tenantID == "" {
		return true
	}
	return cred.TenantID == tenantID
}
