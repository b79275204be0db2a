package encryption

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *Service {
	key, err := GenerateKey()
	require.NoError(t, err)

	svc, err := NewService(key)
	require.NoError(t, err)
	return svc
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.Encrypt("nfp_super_secret_token")
	require.NoError(t, err)
	assert.NotEqual(t, "nfp_super_secret_token", token)

	plaintext, err := svc.Decrypt(token)
	require.NoError(t, err)
	assert.Equal(t, "nfp_super_secret_token", plaintext)
}

func TestEncrypt_EmptyString(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, token)

	plaintext, err := svc.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, plaintext)
}

func TestDecrypt_WrongKey(t *testing.T) {
	first := newTestService(t)
	second := newTestService(t)

	token, err := first.Encrypt("secret")
	require.NoError(t, err)

	_, err = second.Decrypt(token)
	require.Error(t, err)
}

func TestDecrypt_MalformedToken(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Decrypt("not-base64!!!")
	require.Error(t, err)
}

func TestNewService_InvalidKey(t *testing.T) {
	_, err := NewService("")
	require.Error(t, err)

	_, err = NewService("too-short")
	require.Error(t, err)
}

func TestGenerateKey_Unique(t *testing.T) {
	first, err := GenerateKey()
	require.NoError(t, err)
	second, err := GenerateKey()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}
