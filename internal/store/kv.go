// Package store persists the work list and the identity-keyed caches that
// make reruns cheap.
package store

import (
	"context"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
)

// Cache drivers accepted by OpenKV.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

// KV is a durable string-keyed cache. Implementations are safe for
// concurrent use; Flush is idempotent.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Flush(ctx context.Context) error
	Len(ctx context.Context) (int, error)
	Close() error
}

// OpenKV opens the cache named namespace using driver. For the file driver
// dir/<namespace>.json is used, for sqlite a shared dir/cache.db, and for
// badger dir/<namespace>/.
func OpenKV(ctx context.Context, driver, dir, namespace string) (KV, error) {
	switch driver {
	case DriverFile, "":
		return OpenFileCache(filepath.Join(dir, namespace+".json"))
	case DriverSQLite:
		return OpenSQLiteCache(ctx, filepath.Join(dir, "cache.db"), namespace)
	case DriverBadger:
		return OpenBadgerCache(filepath.Join(dir, namespace))
	default:
		return nil, eris.Errorf("store: unknown cache driver %q", driver)
	}
}

// Typed stores JSON-encoded values of type V on top of a KV.
type Typed[V any] struct {
	kv KV
}

// NewTyped wraps kv.
func NewTyped[V any](kv KV) *Typed[V] {
	return &Typed[V]{kv: kv}
}

// Get decodes the entry for key. A missing entry returns ok=false.
func (t *Typed[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var v V
	raw, ok, err := t.kv.Get(ctx, key)
	if err != nil || !ok {
		return v, false, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, eris.Wrapf(err, "store: decode cache entry %q", key)
	}
	return v, true, nil
}

// Put encodes v and stores it under key.
func (t *Typed[V]) Put(ctx context.Context, key string, v V) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "store: encode cache entry %q", key)
	}
	return t.kv.Put(ctx, key, raw)
}

// Flush persists pending entries.
func (t *Typed[V]) Flush(ctx context.Context) error {
	return t.kv.Flush(ctx)
}

// Len returns the number of entries.
func (t *Typed[V]) Len(ctx context.Context) (int, error) {
	return t.kv.Len(ctx)
}
