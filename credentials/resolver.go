package credentials

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/quayside-cd/quayside/domain"
)

// Provider names understood by the resolver.
const (
	ProviderGitHub  = "github"
	ProviderNetlify = "netlify"
	ProviderVercel  = "vercel"
)

// ErrNotFound is returned when no tier of the resolution chain yields a
// usable credential.
var ErrNotFound = errors.New("no credential found")

// ErrTenantDenied is returned when the only cached credential is scoped to a
// different tenant. The denial is explicit; the resolver must not silently
// fall through to environment credentials.
var ErrTenantDenied = errors.New("credential is scoped to a different tenant")

// requestFieldAliases maps a provider to the legacy flat request fields that
// historically carried its token. The structured credentials.<provider> block
// is always preferred; these exist for backward compatibility only.
var requestFieldAliases = map[string][]string{
	ProviderGitHub:  {"githubToken", "github_token", "ghToken"},
	ProviderNetlify: {"netlifyToken", "netlify_token", "netlifyAuthToken"},
	ProviderVercel:  {"vercelToken", "vercel_token"},
}

// envVarAliases maps a provider to the environment variable names accepted
// for its token, in priority order. Multiple historical names per provider.
var envVarAliases = map[string][]string{
	ProviderGitHub:  {"GITHUB_TOKEN", "GH_TOKEN", "GITHUB_API_TOKEN"},
	ProviderNetlify: {"NETLIFY_AUTH_TOKEN", "NETLIFY_TOKEN", "NETLIFY_API_TOKEN"},
	ProviderVercel:  {"VERCEL_TOKEN", "VERCEL_API_TOKEN", "VERCEL_ACCESS_TOKEN"},
}

// envAccountAliases maps a provider to the environment variables carrying its
// account or team identifier.
var envAccountAliases = map[string][]string{
	ProviderNetlify: {"NETLIFY_ACCOUNT_ID", "NETLIFY_ACCOUNT_SLUG"},
	ProviderVercel:  {"VERCEL_TEAM_ID"},
}

// Env abstracts environment variable access, the lowest-priority credential
// tier.
type Env interface {
	Getenv(key string) string
}

// ResolveOptions carries the per-call credential sources.
type ResolveOptions struct {
	// Override is an explicit caller-supplied credential; the highest
	// priority tier.
	Override *domain.Credential

	// Request is the in-flight request credentials payload: a structured
	// credentials.<provider> block plus legacy flat aliases.
	Request map[string]any

	// TenantID scopes store lookups and access checks.
	TenantID string
}

// Resolver resolves credentials through the fixed priority chain:
// explicit override, request payload, tenant store, environment.
type Resolver struct {
	store *Store
	env   Env
}

func NewResolver(store *Store, env Env) *Resolver {
	return &Resolver{store: store, env: env}
}

// Resolve walks the priority chain for a provider, highest priority first,
// stopping at the first source yielding a usable value.
func (r *Resolver) Resolve(provider string, opts ResolveOptions) (*domain.Credential, error) {
	if provider == "" {
		return nil, fmt.Errorf("provider is required")
	}

	// Tier 1: explicit per-call override
	if opts.Override != nil && opts.Override.Token != "" {
		cred := *opts.Override
		cred.Provider = provider
		cred.Source = domain.CredentialSourceOverride
		if cred.TenantID == "" {
			cred.TenantID = opts.TenantID
		}
		return &cred, nil
	}

	// Tier 2: in-flight request payload
	if cred := r.fromRequest(provider, opts); cred != nil {
		return cred, nil
	}

	// Tier 3: tenant-scoped temporary store
	cred, found, err := r.store.Get(opts.TenantID, provider)
	if err != nil {
		slog.Error("Credential store read failed",
			"layer", "credentials",
			"operation", "resolve",
			"provider", provider,
			"error", err)
		return nil, err
	}
	if found {
		if !domain.ValidateTenantAccess(cred, opts.TenantID) {
			// Absence of access must be explicit: do not fall
			// through to environment credentials.
			slog.Warn("Credential access denied",
				"layer", "credentials",
				"operation", "resolve",
				"provider", provider,
				"tenant_id", opts.TenantID)
			return nil, ErrTenantDenied
		}
		return cred, nil
	}

	// Tier 4: process environment
	if cred := r.fromEnvironment(provider, opts.TenantID); cred != nil {
		return cred, nil
	}

	return nil, ErrNotFound
}

func (r *Resolver) fromRequest(provider string, opts ResolveOptions) *domain.Credential {
	if opts.Request == nil {
		return nil
	}

	// Structured credentials.<provider> block first
	if block, ok := opts.Request[provider].(map[string]any); ok {
		token, _ := block["token"].(string)
		if token != "" {
			accountID, _ := block["accountId"].(string)
			return &domain.Credential{
				Provider:  provider,
				Token:     token,
				AccountID: accountID,
				Source:    domain.CredentialSourceRequest,
				TenantID:  opts.TenantID,
			}
		}
	}

	// Legacy flat-field aliases
	for _, field := range requestFieldAliases[provider] {
		if token, ok := opts.Request[field].(string); ok && token != "" {
			return &domain.Credential{
				Provider: provider,
				Token:    token,
				Source:   domain.CredentialSourceRequest,
				TenantID: opts.TenantID,
			}
		}
	}

	return nil
}

func (r *Resolver) fromEnvironment(provider, tenantID string) *domain.Credential {
	if r.env == nil {
		return nil
	}

	for _, name := range envVarAliases[provider] {
		token := r.env.Getenv(name)
		if token == "" {
			continue
		}

		cred := &domain.Credential{
			Provider: provider,
			Token:    token,
			Source:   domain.CredentialSourceEnvironment,
			TenantID: tenantID,
		}
		for _, accountVar := range envAccountAliases[provider] {
			if v := r.env.Getenv(accountVar); v != "" {
				cred.AccountID = v
				break
			}
		}
		return cred
	}

	return nil
}
