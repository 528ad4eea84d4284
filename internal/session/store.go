package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Fixed storage keys, shared by every store implementation.
const (
	KeyAccessToken  = "auth_token"
	KeyRefreshToken = "refresh_token"
	KeyUsername     = "username"
)

type Credentials struct {
	AccessToken  string
	RefreshToken string
	Username     string
}

// LoggedIn reports whether an access token is held.
func (c Credentials) LoggedIn() bool { return c.AccessToken != "" }

func (c Credentials) validate() error {
	if c.AccessToken != "" && c.Username == "" {
		return ErrIncompleteCredentials
	}
	return nil
}

func (c Credentials) toMap() map[string]string {
	m := make(map[string]string, 3)
	if c.AccessToken != "" {
		m[KeyAccessToken] = c.AccessToken
	}
	if c.RefreshToken != "" {
		m[KeyRefreshToken] = c.RefreshToken
	}
	if c.Username != "" {
		m[KeyUsername] = c.Username
	}
	return m
}

func fromMap(m map[string]string) Credentials {
	return Credentials{
		AccessToken:  m[KeyAccessToken],
		RefreshToken: m[KeyRefreshToken],
		Username:     m[KeyUsername],
	}
}

// CredentialStore holds the client's tokens. Implementations must be safe for
// concurrent use; the last writer wins.
type CredentialStore interface {
	Load() (Credentials, error)
	Save(Credentials) error
	SetAccessToken(token string) error
	Clear() error
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]string{}}
}

func (s *MemoryStore) Load() (Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fromMap(s.data), nil
}

func (s *MemoryStore) Save(c Credentials) error {
	if err := c.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.data = c.toMap()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) SetAccessToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := fromMap(s.data)
	c.AccessToken = token
	if err := c.validate(); err != nil {
		return err
	}
	s.data = c.toMap()
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	s.data = map[string]string{}
	s.mu.Unlock()
	return nil
}

// FileStore keeps credentials in a JSON document. Writes go to a temp file
// that is renamed over the target, so readers see the old or the new document.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load() (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) Save(c Credentials) error {
	if err := c.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(c)
}

func (s *FileStore) SetAccessToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.read()
	if err != nil {
		return err
	}
	c.AccessToken = token
	if err := c.validate(); err != nil {
		return err
	}
	return s.write(c)
}

// Clear removes the document in one step. Clearing an empty store is a no-op.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}

func (s *FileStore) read() (Credentials, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Credentials{}, nil
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("read credentials: %w", err)
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return Credentials{}, fmt.Errorf("decode credentials: %w", err)
	}
	return fromMap(m), nil
}

func (s *FileStore) write(c Credentials) error {
	raw, err := json.MarshalIndent(c.toMap(), "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close credentials: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("chmod credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace credentials: %w", err)
	}
	return nil
}
