package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const keychainService = "lumina"

// Keychain reads and writes secrets in the platform secret store.
type Keychain interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

// NewKeychain returns the platform secret store: macOS Keychain on darwin,
// a 0600 JSON file elsewhere.
func NewKeychain() Keychain {
	return platformKeychain{}
}

type platformKeychain struct{}

func (platformKeychain) Get(service, account string) (string, error) {
	return keychainGet(service, account)
}

func (platformKeychain) Set(service, account, value string) error {
	return keychainSet(service, account, value)
}

// GetAPIToken returns the bearer token guarding the management endpoints,
// generating and storing one on first use.
func GetAPIToken(kc Keychain) (string, error) {
	return ensureSecret(kc, "api_token")
}

// GetSessionSecret returns the HMAC key used to sign session tokens,
// generating and storing one on first use.
func GetSessionSecret(kc Keychain) (string, error) {
	return ensureSecret(kc, "session_secret")
}

func ensureSecret(kc Keychain, account string) (string, error) {
	if v, err := kc.Get(keychainService, account); err == nil && v != "" {
		return v, nil
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating %s: %w", account, err)
	}
	v := hex.EncodeToString(buf)
	if err := kc.Set(keychainService, account, v); err != nil {
		return "", fmt.Errorf("storing %s: %w", account, err)
	}
	return v, nil
}
