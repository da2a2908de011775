package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrNoToken is returned by Get when no credential token is stored.
var ErrNoToken = errors.New("no credential token")

// TokenFileName is the name of the token file inside the data directory.
const TokenFileName = "token.json"

// TokenStore persists the single session credential. Implementations are
// synchronous: a Set is visible to the next Get on return.
type TokenStore interface {
	Set(token string) error
	Get() (string, error) // returns ErrNoToken if none exists
	Clear() error
}

// tokenFile is the on-disk representation of the credential slot.
type tokenFile struct {
	AccessToken string    `json:"access_token"`
	SavedAt     time.Time `json:"saved_at"`
}

// diskStore is the concrete TokenStore that writes to the XDG data directory.
type diskStore struct {
	path string // full path to token.json
}

// NewTokenStore returns a TokenStore backed by the XDG data directory.
// Path: $XDG_DATA_HOME/ayurveda-now/token.json or ~/.local/share/ayurveda-now/token.json
func NewTokenStore() (TokenStore, error) {
	dir, err := DataDir()
	if err != nil {
		return nil, fmt.Errorf("resolving data directory: %w", err)
	}
	return NewTokenStoreAt(dir)
}

// NewTokenStoreAt returns a disk TokenStore rooted at dir, creating it if needed.
func NewTokenStoreAt(dir string) (TokenStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return &diskStore{path: filepath.Join(dir, TokenFileName)}, nil
}

// DataDir returns the application-specific XDG data directory.
func DataDir() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "ayurveda-now"), nil
}

// Set writes the token atomically via a temp file + os.Rename.
func (d *diskStore) Set(token string) error {
	data, err := json.Marshal(tokenFile{AccessToken: token, SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}

	// Write to a temp file in the same directory so os.Rename is atomic.
	tmp, err := os.CreateTemp(filepath.Dir(d.path), "token-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if err = tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to persist token: %w", err)
	}
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to persist token: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}

	if err = os.Rename(tmpName, d.path); err != nil {
		return fmt.Errorf("failed to persist token: %w", err)
	}
	return nil
}

// Get reads the token file. Returns ErrNoToken if the file does not exist
// or holds an empty token.
func (d *diskStore) Get() (string, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("failed to read token: %w", err)
	}

	var f tokenFile
	if err := json.Unmarshal(data, &f); err != nil {
		return "", fmt.Errorf("failed to parse token file: %w", err)
	}
	if strings.TrimSpace(f.AccessToken) == "" {
		return "", ErrNoToken
	}
	return f.AccessToken, nil
}

// Clear removes the token file from disk.
func (d *diskStore) Clear() error {
	if err := os.Remove(d.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}

// memoryStore keeps the token in process memory only.
type memoryStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryTokenStore returns a TokenStore that does not survive the process.
func NewMemoryTokenStore() TokenStore {
	return &memoryStore{}
}

func (m *memoryStore) Set(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *memoryStore) Get() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == "" {
		return "", ErrNoToken
	}
	return m.token, nil
}

func (m *memoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}
