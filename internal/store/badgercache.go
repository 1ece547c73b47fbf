package store

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/rotisserie/eris"
)

const badgerKeyPrefix = "entry:"

// BadgerCache is a KV backed by an embedded Badger database.
type BadgerCache struct {
	db *badger.DB
}

// OpenBadgerCache opens (or creates) the database in dir.
func OpenBadgerCache(dir string) (*BadgerCache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, eris.Wrapf(err, "badger: open %s", dir)
	}
	return &BadgerCache{db: db}, nil
}

// NewBadgerCache wraps an already open database.
func NewBadgerCache(db *badger.DB) *BadgerCache {
	return &BadgerCache{db: db}
}

func (c *BadgerCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerKeyPrefix + key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "badger: get cache entry")
	}
	return value, true, nil
}

func (c *BadgerCache) Put(_ context.Context, key string, value []byte) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(badgerKeyPrefix+key), value)
	})
	return eris.Wrap(err, "badger: put cache entry")
}

func (c *BadgerCache) Flush(_ context.Context) error {
	return eris.Wrap(c.db.Sync(), "badger: sync")
}

func (c *BadgerCache) Len(_ context.Context) (int, error) {
	n := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(badgerKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	return n, eris.Wrap(err, "badger: count cache entries")
}

func (c *BadgerCache) Close() error {
	return c.db.Close()
}
