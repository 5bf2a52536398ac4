package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	tokenFileName = "github_token"
	tokenFileMode = 0600
)

// ErrNoToken is returned when neither the keychain nor the file hold a token.
var ErrNoToken = errors.New("no token stored")

// TokenStore keeps a token in the OS keychain and falls back to a file in
// Dir when the keychain is unavailable.
type TokenStore struct {
	Service string
	User    string
	Dir     string
}

func (s *TokenStore) filePath() string {
	return filepath.Join(s.Dir, tokenFileName)
}

// Save stores token, preferring the keychain.
func (s *TokenStore) Save(token string) error {
	if token == "" {
		return errors.New("token is empty")
	}

	if err := keyring.Set(s.Service, s.User, token); err != nil {
		slog.Warn("keychain unavailable, falling back to file", "error", err)
		return s.saveFile(token)
	}

	// legacy file no longer needed
	_ = os.Remove(s.filePath())
	return nil
}

// Get returns the stored token. A token found only in the file is migrated
// into the keychain when possible.
func (s *TokenStore) Get() (string, error) {
	token, err := keyring.Get(s.Service, s.User)
	if err == nil && token != "" {
		return token, nil
	}

	token, err = s.getFile()
	if err != nil {
		return "", err
	}

	if migrateErr := keyring.Set(s.Service, s.User, token); migrateErr == nil {
		slog.Info("migrated token from file to OS keychain")
		_ = os.Remove(s.filePath())
	}

	return token, nil
}

// Delete removes the token from both locations.
func (s *TokenStore) Delete() error {
	if err := keyring.Delete(s.Service, s.User); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		slog.Debug("error deleting keychain token", "error", err)
	}
	if err := os.Remove(s.filePath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing token file: %w", err)
	}
	return nil
}

func (s *TokenStore) saveFile(token string) error {
	if s.Dir == "" {
		return errors.New("token directory required")
	}
	if err := os.WriteFile(s.filePath(), []byte(token), tokenFileMode); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

func (s *TokenStore) getFile() (string, error) {
	if s.Dir == "" {
		return "", ErrNoToken
	}
	b, err := os.ReadFile(s.filePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("reading token file %s: %w", s.filePath(), err)
	}
	token := strings.TrimSpace(string(b))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}
