package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"kosmigo/config"
)

// Preference keys. The names match the ones the original Electron build wrote,
// so an imported settings.json keeps working.
const (
	KeyWindowBounds = "windowBounds"
	KeyAlwaysOnTop  = "isAlwaysOnTop"
	KeyMuted        = "isMuted"
	KeyCustomCSS    = "customCSS"
	KeyRecentRooms  = "recentRooms"
)

// ErrCorrupt is returned by Open when the file exists but is not a JSON object.
// The store is still usable and starts from defaults.
var ErrCorrupt = errors.New("preferences file is corrupt")

// Store is a persistent key/value map backed by one JSON file. Only the
// primary instance writes it; the single-instance guard makes sure of that.
type Store struct {
	mu     sync.Mutex
	path   string
	values map[string]json.RawMessage
}

// DefaultPath returns <config dir>/kosmi/settings.json.
func DefaultPath() string {
	return filepath.Join(config.Dir(), "settings.json")
}

// Open loads the store at path. A missing file yields an empty store.
func Open(path string) (*Store, error) {
	s := &Store{
		path:   path,
		values: make(map[string]json.RawMessage),
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return s, fmt.Errorf("failed to read preferences: %w", err)
	}
	if err := json.Unmarshal(data, &s.values); err != nil || s.values == nil {
		s.values = make(map[string]json.RawMessage)
		return s, fmt.Errorf("%w: %s", ErrCorrupt, path)
	}
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Get returns the value stored under key decoded as T, or def when the key is
// unset or holds a value of a different shape.
func Get[T any](s *Store, key string, def T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getLocked(s, key, def)
}

func getLocked[T any](s *Store, key string, def T) T {
	raw, ok := s.values[key]
	if !ok {
		return def
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return def
	}
	return v
}

// Set stores value under key and persists the file.
func (s *Store) Set(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = data
	return s.saveLocked()
}

// Delete removes key and persists the file.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.saveLocked()
}

// Reset removes every key.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]json.RawMessage)
	return s.saveLocked()
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Raw returns the stored JSON for key.
func (s *Store) Raw(key string) (json.RawMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.values[key]
	return raw, ok
}

// saveLocked writes the file through a temp file so a crash never leaves a
// half-written settings.json behind.
func (s *Store) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize preferences: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*.json")
	if err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace preferences: %w", err)
	}
	return nil
}
