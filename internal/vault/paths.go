// Package vault stores the OAuth2 token pair of every firm.
package vault

import (
	"os"
	"path/filepath"
)

// CredentialsFile is the file name used by the file-backed store.
const CredentialsFile = "credentials.json"

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// DefaultVaultPath returns the default vault directory path.
func DefaultVaultPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tplsync")
	}
	return filepath.Join(homeDir(), ".config", "tplsync")
}

// DefaultCredentialsPath returns the default credentials file path.
func DefaultCredentialsPath() string {
	return filepath.Join(DefaultVaultPath(), CredentialsFile)
}
