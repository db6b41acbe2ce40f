// Package storage implements the process-wide key-value store shared by all
// modules. Values are namespaced, JSON-encoded, and persisted to a single file
// written atomically (temp file + rename) so a crash mid-write never corrupts
// prior state.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store is a namespaced key-value store backed by one JSON file.
type Store struct {
	mu   sync.RWMutex
	path string
	data map[string]map[string]json.RawMessage
}

// Open loads the store at path, creating an empty one if the file is absent.
func Open(path string) (*Store, error) {
	s := &Store{
		path: path,
		data: make(map[string]map[string]json.RawMessage),
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage open %s: %w", path, err)
	}
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("storage decode %s: %w", path, err)
	}
	return s, nil
}

// Get decodes the value at (namespace, key) into out. The second return is
// false when the key is absent; out is then left untouched.
func (s *Store) Get(namespace, key string, out any) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ns, ok := s.data[namespace]
	if !ok {
		return false, nil
	}
	raw, ok := ns[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("storage decode %s/%s: %w", namespace, key, err)
	}
	return true, nil
}

// GetString returns the string at (namespace, key), or def when absent or of
// the wrong shape.
func (s *Store) GetString(namespace, key, def string) string {
	var v string
	if ok, err := s.Get(namespace, key, &v); err != nil || !ok {
		return def
	}
	return v
}

// GetStrings returns the string slice at (namespace, key), or def when absent
// or empty.
func (s *Store) GetStrings(namespace, key string, def []string) []string {
	var v []string
	if ok, err := s.Get(namespace, key, &v); err != nil || !ok || len(v) == 0 {
		return def
	}
	return v
}

// Set stores the value at (namespace, key) and persists immediately.
func (s *Store) Set(namespace, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("storage encode %s/%s: %w", namespace, key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.data[namespace]
	if !ok {
		ns = make(map[string]json.RawMessage)
		s.data[namespace] = ns
	}
	ns[key] = raw
	return s.flushLocked()
}

// Pop removes the value at (namespace, key); removing an absent key is a no-op.
func (s *Store) Pop(namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.data[namespace]
	if !ok {
		return nil
	}
	if _, ok := ns[key]; !ok {
		return nil
	}
	delete(ns, key)
	if len(ns) == 0 {
		delete(s.data, namespace)
	}
	return s.flushLocked()
}

// flushLocked writes the whole store atomically. Callers hold s.mu.
func (s *Store) flushLocked() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("storage encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("storage temp for %s: %w", s.path, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(raw); err != nil {
		return fmt.Errorf("storage write %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("storage rename %s: %w", s.path, err)
	}
	return nil
}
