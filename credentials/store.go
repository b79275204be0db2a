// Package credentials resolves per-provider API credentials from a
// priority-ordered chain of sources and holds tenant-scoped temporary
// credentials.
package credentials

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/quayside-cd/quayside/domain"
	"github.com/quayside-cd/quayside/encryption"
)

// DefaultBucket is the store bucket used when a credential is supplied
// without a tenant id.
const DefaultBucket = "default"

type storedCredential struct {
	encryptedToken string
	accountID      string
	tenantID       string
}

// Store is the tenant-scoped temporary credential store. Credentials are
// supplied once (per process lifetime) and cached in memory, keyed by tenant
// id or the default bucket. Tokens are fernet-encrypted at rest.
//
// Reads vastly outnumber writes, so a single RWMutex-guarded map suffices.
type Store struct {
	mu         sync.RWMutex
	encryption *encryption.Service
	buckets    map[string]map[string]storedCredential // bucket -> provider -> credential
}

func NewStore(enc *encryption.Service) *Store {
	return &Store{
		encryption: enc,
		buckets:    make(map[string]map[string]storedCredential),
	}
}

func bucketKey(tenantID string) string {
	if tenantID == "" {
		return DefaultBucket
	}
	return tenantID
}

// Put caches a credential for a provider under the tenant's bucket.
func (s *Store) Put(tenantID, provider, token, accountID string) error {
	if provider == "" {
		return fmt.Errorf("provider is required")
	}
	if token == "" {
		return fmt.Errorf("token is required")
	}

	encrypted, err := s.encryption.Encrypt(token)
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}

	bucket := bucketKey(tenantID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buckets[bucket] == nil {
		s.buckets[bucket] = make(map[string]storedCredential)
	}
	s.buckets[bucket][provider] = storedCredential{
		encryptedToken: encrypted,
		accountID:      accountID,
		tenantID:       tenantID,
	}

	slog.Debug("Credential stored",
		"layer", "credentials",
		"operation", "store_put",
		"provider", provider,
		"bucket", bucket)
	return nil
}

// Get returns the cached credential for a provider, looking first in the
// tenant's bucket and then in the default bucket. The boolean reports whether
// anything was found.
func (s *Store) Get(tenantID, provider string) (*domain.Credential, bool, error) {
	s.mu.RLock()
	stored, ok := s.lookup(tenantID, provider)
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	token, err := s.encryption.Decrypt(stored.encryptedToken)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decrypt credential: %w", err)
	}

	return &domain.Credential{
		Provider:  provider,
		Token:     token,
		AccountID: stored.accountID,
		Source:    domain.CredentialSourceStore,
		TenantID:  stored.tenantID,
	}, true, nil
}

func (s *Store) lookup(tenantID, provider string) (storedCredential, bool) {
	if tenantID != "" {
		if bucket, ok := s.buckets[tenantID]; ok {
			if cred, ok := bucket[provider]; ok {
				return cred, true
			}
		}
	}
	if bucket, ok := s.buckets[DefaultBucket]; ok {
		if cred, ok := bucket[provider]; ok {
			return cred, true
		}
	}

	// Fall back to any bucket holding the provider. The credential keeps
	// its tenant scope; the caller's access check decides whether the
	// requesting tenant may use it.
	names := make([]string, 0, len(s.buckets))
	for name := range s.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if cred, ok := s.buckets[name][provider]; ok {
			return cred, true
		}
	}
	return storedCredential{}, false
}

// Delete removes a cached credential. Removing an absent credential is not an
// error.
func (s *Store) Delete(tenantID, provider string) {
	bucket := bucketKey(tenantID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if creds, ok := s.buckets[bucket]; ok {
		delete(creds, provider)
	}
}
