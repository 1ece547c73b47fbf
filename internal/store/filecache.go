package store

import (
	"context"
	"os"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// FileCache keeps the whole cache in memory and writes it as one
// pretty-printed JSON object on Flush. A missing file is an empty cache.
type FileCache struct {
	path string

	mu      sync.RWMutex
	entries map[string]json.RawMessage
	dirty   bool
}

// OpenFileCache loads path if it exists.
func OpenFileCache(path string) (*FileCache, error) {
	c := &FileCache{path: path, entries: make(map[string]json.RawMessage)}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return c, nil
	case err != nil:
		return nil, eris.Wrapf(err, "store: read cache %s", path)
	}
	if len(data) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		return nil, eris.Wrapf(err, "store: parse cache %s", path)
	}
	return c, nil
}

// Path returns the backing file.
func (c *FileCache) Path() string { return c.path }

func (c *FileCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *FileCache) Put(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return eris.Errorf("store: cache value for %q is not JSON", key)
	}
	buf := make(json.RawMessage, len(value))
	copy(buf, value)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = buf
	c.dirty = true
	return nil
}

// Flush writes the cache if anything changed since the last flush.
func (c *FileCache) Flush(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}

	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return eris.Wrap(err, "store: encode file cache")
	}
	if err := WriteFileAtomic(c.path, data, 0o644); err != nil {
		return err
	}
	c.dirty = false
	return nil
}

func (c *FileCache) Len(_ context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries), nil
}

// Close flushes.
func (c *FileCache) Close() error {
	return c.Flush(context.Background())
}
