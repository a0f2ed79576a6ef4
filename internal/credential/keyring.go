package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const defaultService = "teamops"

// ErrNotFound is returned when no token is stored for a profile.
var ErrNotFound = errors.New("credential not found")

// Store keeps per-profile document tokens in the system keyring.
type Store struct {
	Ring keyring.Keyring
}

// Open returns a configured keyring-backed store. fileDir is used by the
// encrypted file backend when no system keychain is available.
func Open(service, fileDir string) (Store, error) {
	if service == "" {
		service = defaultService
	}
	if fileDir == "" {
		fileDir = "~/.config/teamops/credentials"
	}
	ring, err := keyring.Open(keyring.Config{
		ServiceName: service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(service + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return Store{}, fmt.Errorf("opening keyring: %w", err)
	}
	return Store{Ring: ring}, nil
}

func tokenKey(profileID string) string {
	return "docsync:" + profileID
}

// Token retrieves the document token for a profile.
func (s Store) Token(profileID string) (string, error) {
	item, err := s.Ring.Get(tokenKey(profileID))
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("getting credential for %q: %w", profileID, err)
	}
	return string(item.Data), nil
}

// SetToken stores the document token for a profile.
func (s Store) SetToken(profileID, token string) error {
	err := s.Ring.Set(keyring.Item{
		Key:   tokenKey(profileID),
		Data:  []byte(token),
		Label: "teamops document sync",
	})
	if err != nil {
		return fmt.Errorf("setting credential for %q: %w", profileID, err)
	}
	return nil
}

// DeleteToken removes the stored token for a profile.
func (s Store) DeleteToken(profileID string) error {
	if err := s.Ring.Remove(tokenKey(profileID)); err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("deleting credential for %q: %w", profileID, err)
	}
	return nil
}
