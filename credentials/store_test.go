package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quayside-cd/quayside/domain"
)

func TestStore_PutGetRoundTrip(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.Put("", ProviderNetlify, "secret-token", "acct-1"))

	cred, found, err := store.Get("", ProviderNetlify)
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, "secret-token", cred.Token)
	assert.Equal(t, "acct-1", cred.AccountID)
	assert.Equal(t, domain.CredentialSourceStore, cred.Source)
	assert.Empty(t, cred.TenantID)
}

func TestStore_TokenEncryptedAtRest(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Put("", ProviderGitHub, "plaintext-token", ""))

	stored := store.buckets[DefaultBucket][ProviderGitHub]
	assert.NotEqual(t, "plaintext-token", stored.encryptedToken)
	assert.NotContains(t, stored.encryptedToken, "plaintext-token")
}

func TestStore_TenantBucketPreferredOverDefault(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Put("", ProviderVercel, "default-token", ""))
	require.NoError(t, store.Put("tenant-a", ProviderVercel, "tenant-token", ""))

	cred, found, err := store.Get("tenant-a", ProviderVercel)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "tenant-token", cred.Token)

	cred, found, err = store.Get("", ProviderVercel)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "default-token", cred.Token)
}

func TestStore_MissingProvider(t *testing.T) {
	store := newTestStore(t)

	_, found, err := store.Get("", ProviderNetlify)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_ValidationErrors(t *testing.T) {
	store := newTestStore(t)

	assert.Error(t, store.Put("", "", "token", ""))
	assert.Error(t, store.Put("", ProviderNetlify, "", ""))
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Put("tenant-a", ProviderNetlify, "token", ""))

	store.Delete("tenant-a", ProviderNetlify)
	_, found, err := store.Get("tenant-a", ProviderNetlify)
	require.NoError(t, err)
	assert.False(t, found)

	// Deleting again is a no-op.
	store.Delete("tenant-a", ProviderNetlify)
}
