package auth

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/zalando/go-keyring"
)

const (
	service = "invoicely-cli"
)

// ErrNoCredential is returned by Get when no credential is stored
var ErrNoCredential = errors.New("not authenticated. Please run 'invoicely login' first")

// TokenStore holds the single active credential of a profile.
// Writes are immediately visible to subsequent reads.
type TokenStore interface {
	Get() (string, error)
	Set(token string) error
	Clear() error
}

// KeyringStore persists the credential in the OS keychain/credential manager
type KeyringStore struct {
	key string
}

// NewKeyringStore returns a store keyed on the API host, so that a sandbox and a
// production API keep separate credentials
func NewKeyringStore(apiURL string) *KeyringStore {
	return &KeyringStore{key: keyringKey(apiURL)}
}

// keyringKey returns the well-known key the credential is stored under
func keyringKey(apiURL string) string {
	host := apiURL
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return fmt.Sprintf("access_token@%s", host)
}

// Get retrieves the credential from the OS keychain
func (k *KeyringStore) Get() (string, error) {
	token, err := keyring.Get(service, k.key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNoCredential
		}
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	if token == "" {
		return "", ErrNoCredential
	}
	return token, nil
}

// Set replaces the stored credential
func (k *KeyringStore) Set(token string) error {
	if token == "" {
		return errors.New("refusing to save an empty token")
	}
	if err := keyring.Set(service, k.key, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Clear removes the credential. Clearing an absent credential is not an error.
func (k *KeyringStore) Clear() error {
	if err := keyring.Delete(service, k.key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
