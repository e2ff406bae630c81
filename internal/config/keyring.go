package config

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name in the OS keychain
	KeyringService = "RefEffort"

	// KeyringGitHubTokenItem is the key for the GitHub token
	KeyringGitHubTokenItem = "github-token"

	// KeyringGitHubUserItem is the key for the GitHub user name
	KeyringGitHubUserItem = "github-user"

	// KeyringJiraTokenItem is the key for the JIRA token
	KeyringJiraTokenItem = "jira-token"
)

// KeyringManager handles secure credential storage in OS keychain
type KeyringManager struct {
	service string
	logger  *logrus.Entry
}

// NewKeyringManager creates a new keyring manager
func NewKeyringManager() *KeyringManager {
	return &KeyringManager{
		service: KeyringService,
		logger:  logrus.WithField("component", "keyring"),
	}
}

// Get reads item from the keychain. A missing item is not an error.
func (km *KeyringManager) Get(item string) (string, error) {
	value, err := keyring.Get(km.service, item)
	if err == keyring.ErrNotFound {
		return "", nil
	}
	if err != nil {
		km.logger.WithError(err).WithField("item", item).Error("failed to read from keychain")
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}
	return value, nil
}

// Set stores item in the keychain
func (km *KeyringManager) Set(item, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", item)
	}
	if err := keyring.Set(km.service, item, value); err != nil {
		km.logger.WithError(err).WithField("item", item).Error("failed to save to keychain")
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}
	km.logger.WithField("item", item).Info("saved to keychain")
	return nil
}

// Delete removes item; deleting a missing item succeeds
func (km *KeyringManager) Delete(item string) error {
	err := keyring.Delete(km.service, item)
	if err == keyring.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}
	return nil
}

// IsAvailable checks if OS keychain is available.
// Returns false on headless systems (CI/CD) where keychain isn't available.
func (km *KeyringManager) IsAvailable() bool {
	_, err := keyring.Get(km.service, "test-availability")
	if err == nil || err == keyring.ErrNotFound {
		return true
	}
	km.logger.WithError(err).Debug("keychain not available")
	return false
}

// MaskSecret masks a token for display.
// Shows first 4 chars and last 4 chars: "ghp_...abcd"
func MaskSecret(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	if len(secret) < 12 {
		return "***"
	}
	return fmt.Sprintf("%s...%s", secret[:4], secret[len(secret)-4:])
}
