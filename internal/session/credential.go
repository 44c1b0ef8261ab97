package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Credential is the bearer token obtained from the authentication provider,
// plus the local user's identity the engine derives read state against.
// The login flow writes it; the daemon only consumes it.
type Credential struct {
	Token  string `toml:"token"`
	UserID string `toml:"user_id"`
}

// LoadCredential reads the stored credential for a session. Returns
// (nil, nil) when none is stored, which means auth is required.
func LoadCredential(name string) (*Credential, error) {
	return LoadCredentialFile(CredentialPath(name))
}

// LoadCredentialFile reads a credential from an explicit path.
func LoadCredentialFile(path string) (*Credential, error) {
	var cred Credential
	_, err := toml.DecodeFile(path, &cred)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credential: %w", err)
	}
	if cred.Token == "" {
		return nil, nil
	}
	return &cred, nil
}

// SaveCredential stores the credential for a session with 0600 permissions.
func SaveCredential(name string, cred *Credential) error {
	return SaveCredentialFile(CredentialPath(name), cred)
}

// SaveCredentialFile stores a credential at an explicit path.
func SaveCredentialFile(path string, cred *Credential) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cred)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// ClearCredential removes the stored credential, e.g. on logout.
func ClearCredential(name string) error {
	err := os.Remove(CredentialPath(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
