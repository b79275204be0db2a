// Package encryption wraps fernet token encryption for sensitive values.
package encryption

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/fernet/fernet-go"
)

// Service handles encryption/decryption of sensitive data, such as provider
// API tokens held by the credential store.
type Service struct {
	key *fernet.Key
}

// NewService creates a new encryption service with the provided key
func NewService(keyString string) (*Service, error) {
	if keyString == "" {
		return nil, fmt.Errorf("encryption key cannot be empty")
	}

	key, err := fernet.DecodeKey(keyString)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key: %w", err)
	}

	return &Service{key: key}, nil
}

// GenerateKey returns a fresh base64-encoded fernet key. Used by tests and
// first-run setup.
func GenerateKey() (string, error) {
	var key fernet.Key
	if err := key.Generate(); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return key.Encode(), nil
}

// Encrypt encrypts plaintext and returns a base64-encoded token
func (e *Service) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil // Don't encrypt empty strings
	}

	token, err := fernet.EncryptAndSign([]byte(plaintext), e.key)
	if err != nil {
		return "", fmt.Errorf("encryption failed: %w", err)
	}
	return base64.StdEncoding.EncodeToString(token), nil
}

// Decrypt decrypts a base64-encoded token and returns plaintext
func (e *Service) Decrypt(token string) (string, error) {
	if token == "" {
		return "", nil // Return empty string for empty tokens
	}

	tokenBytes, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("invalid token format: %w", err)
	}

	// Set TTL to 100 years - stored credentials must not expire on their own
	plaintext := fernet.VerifyAndDecrypt(tokenBytes, time.Hour*24*365*100, []*fernet.Key{e.key})
	if plaintext == nil {
		return "", fmt.Errorf("failed to decrypt token: invalid or expired")
	}

	return string(plaintext), nil
}
