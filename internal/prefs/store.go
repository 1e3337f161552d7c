// Package prefs persists per-user appearance preferences.
package prefs

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrNotFound is returned when a user has no saved preferences.
var ErrNotFound = errors.New("preferences not found")

// Preferences is a user's saved appearance. An empty Theme with Adaptive set
// means the theme follows the color scheme.
type Preferences struct {
	Theme       string    `json:"theme,omitempty"`
	ColorScheme string    `json:"color_scheme,omitempty"`
	Adaptive    bool      `json:"adaptive,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store reads and writes preferences keyed by user.
type Store interface {
	Get(user string) (Preferences, error)
	Put(user string, p Preferences) error
}

// FileStore keeps every user's preferences in one JSON document, replaced
// atomically on each write.
type FileStore struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path; an empty path uses a file in
// the temp directory.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = filepath.Join(os.TempDir(), "mosaic-style-prefs.json")
	}
	return &FileStore{path: path, now: time.Now}
}

func (s *FileStore) Get(user string) (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.readLocked()
	if err != nil {
		return Preferences{}, err
	}
	p, ok := rows[user]
	if !ok {
		return Preferences{}, ErrNotFound
	}
	return p, nil
}

func (s *FileStore) Put(user string, p Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.readLocked()
	if err != nil {
		return err
	}
	p.UpdatedAt = s.now().UTC()
	rows[user] = p
	return s.writeLocked(rows)
}

func (s *FileStore) readLocked() (map[string]Preferences, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]Preferences{}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return map[string]Preferences{}, nil
	}
	rows := map[string]Preferences{}
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *FileStore) writeLocked(rows map[string]Preferences) error {
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmpFile, err := os.CreateTemp(dir, ".mosaic-prefs-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Chmod(0o600); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}
