package cache

import (
	"encoding/json"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
)

// Cache is a process-shared TTL key-value store backed by badger.
// Values are JSON-encoded, so any marshalable type round-trips.
type Cache struct {
	db         *badger.DB
	defaultTTL time.Duration
}

// Open opens (or creates) a cache at path with the given default TTL
func Open(path string, defaultTTL time.Duration) (*Cache, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache at %s: %w", path, err)
	}

	return &Cache{db: db, defaultTTL: defaultTTL}, nil
}

// OpenInMemory opens an in-memory cache, used by tests and ephemeral runs
func OpenInMemory(defaultTTL time.Duration) (*Cache, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory cache: %w", err)
	}

	return &Cache{db: db, defaultTTL: defaultTTL}, nil
}

// Get reads key into dst, reporting whether the key was present
func (c *Cache) Get(key string, dst interface{}) (bool, error) {
	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// Set stores value under key with the default TTL
func (c *Cache) Set(key string, value interface{}) error {
	return c.SetTTL(key, value, c.defaultTTL)
}

// SetTTL stores value under key, expiring after ttl. A non-positive ttl
// stores the entry without expiry.
func (c *Cache) SetTTL(key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), raw)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Delete removes key; deleting an absent key is not an error
func (c *Cache) Delete(key string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Close flushes and closes the underlying store
func (c *Cache) Close() error {
	return c.db.Close()
}

// MetadataKey builds the cache key for a single item's metadata
func MetadataKey(source, mediaType, mediaID string) string {
	return fmt.Sprintf("%s_%s_%s", source, mediaType, mediaID)
}

// SearchKey builds the cache key for one page of search results
func SearchKey(source, mediaType, query string, page int) string {
	return fmt.Sprintf("search_%s_%s_%s_%d", source, mediaType, query, page)
}
