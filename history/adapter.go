package history

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Adapter is a persistence backend for conversation logs. Implementations
// must be safe for concurrent use.
type Adapter interface {
	// Get retrieves a value by key. Returns nil, false, nil if not found.
	Get(ctx context.Context, key string) (json.RawMessage, bool, error)

	// Set stores a value by key.
	Set(ctx context.Context, key string, value json.RawMessage) error

	// Delete removes a key. No error if the key doesn't exist.
	Delete(ctx context.Context, key string) error

	// Keys returns all stored keys.
	Keys(ctx context.Context) ([]string, error)
}

// MemoryAdapter provides thread-safe in-memory storage. It is the default
// backend when no adapter is given.
type MemoryAdapter struct {
	mu   sync.RWMutex
	data map[string]json.RawMessage
}

// NewMemoryAdapter creates a new in-memory adapter.
func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{data: make(map[string]json.RawMessage)}
}

// Get retrieves a value by key.
func (m *MemoryAdapter) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

// Set stores a value by key.
func (m *MemoryAdapter) Set(_ context.Context, key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Delete removes a key.
func (m *MemoryAdapter) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Keys returns all keys.
func (m *MemoryAdapter) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys, nil
}

// FileAdapter stores each key as a JSON file under a directory, so a task's
// conversation survives process restarts and can be resumed later.
type FileAdapter struct {
	mu  sync.Mutex
	dir string
}

// NewFileAdapter creates a FileAdapter rooted at dir, creating it if needed.
func NewFileAdapter(dir string) (*FileAdapter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileAdapter{dir: dir}, nil
}

// keys contain slashes (task/<id>/messages); flatten them for the filesystem.
func (f *FileAdapter) path(key string) string {
	name := strings.ReplaceAll(key, "/", "_") + ".json"
	return filepath.Join(f.dir, name)
}

// Get retrieves a value by key.
func (f *FileAdapter) Get(_ context.Context, key string) (json.RawMessage, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set stores a value by key. The write goes through a temp file rename so a
// crash mid-write never leaves a torn history on disk.
func (f *FileAdapter) Set(_ context.Context, key string, value json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Delete removes a key.
func (f *FileAdapter) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Keys returns all stored keys.
func (f *FileAdapter) Keys(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, ent := range entries {
		name := ent.Name()
		if ent.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		keys = append(keys, strings.ReplaceAll(strings.TrimSuffix(name, ".json"), "_", "/"))
	}
	return keys, nil
}
