package source

import (
	"context"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// Cache is a read-through page cache backed by a badger key-value
// store. Wrapping a File caches every page read by (partition, page,
// offset, length), which pays off for sources whose reads are remote
// or repeatedly rescanned.
//
// A Cache is safe for concurrent use by many tasks and must be closed
// after the last run using it.
type Cache struct {
	db *badger.DB
}

// OpenCache opens (or creates) a cache at dir.
func OpenCache(dir string) (*Cache, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("opening page cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// OpenMemoryCache opens a process-local in-memory cache, mostly for
// tests.
func OpenMemoryCache() (*Cache, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("opening page cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the backing store.
func (c *Cache) Close() error { return c.db.Close() }

// Wrap returns f with every page read routed through the cache. name
// namespaces the keys; wrapping two distinct sources under one name
// corrupts reads.
func (c *Cache) Wrap(name string, f File) File {
	return cachedFile{cache: c, name: name, file: f}
}

type cachedFile struct {
	cache *Cache
	name  string
	file  File
}

func (f cachedFile) Partitions(ctx context.Context) ([]Partition, error) {
	parts, err := f.file.Partitions(ctx)
	if err != nil {
		return nil, err
	}
	wrapped := make([]Partition, len(parts))
	for i, p := range parts {
		wrapped[i] = cachedPartition{cache: f.cache, prefix: fmt.Sprintf("%s/%d", f.name, i), part: p}
	}
	return wrapped, nil
}

type cachedPartition struct {
	cache  *Cache
	prefix string
	part   Partition
}

func (p cachedPartition) Pages(ctx context.Context) ([]Page, error) {
	pages, err := p.part.Pages(ctx)
	if err != nil {
		return nil, err
	}
	wrapped := make([]Page, len(pages))
	for i, page := range pages {
		wrapped[i] = &cachedPage{cache: p.cache, prefix: fmt.Sprintf("%s/%d", p.prefix, i), page: page}
	}
	return wrapped, nil
}

type cachedPage struct {
	cache  *Cache
	prefix string
	page   Page
}

// Len implements Page.
func (p *cachedPage) Len() uint64 { return p.page.Len() }

// ReadAt implements Page, consulting the cache before the underlying
// page.
func (p *cachedPage) ReadAt(ctx context.Context, offset uint64, buf []byte) error {
	key := []byte(fmt.Sprintf("%s/%d-%d", p.prefix, offset, len(buf)))
	err := p.cache.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			copy(buf, val)
			return nil
		})
	})
	if err == nil {
		return nil
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	if err := p.page.ReadAt(ctx, offset, buf); err != nil {
		return err
	}
	stored := make([]byte, len(buf))
	copy(stored, buf)
	return p.cache.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, stored)
	})
}

// Close releases the underlying page; cache entries persist.
func (p *cachedPage) Close() error {
	if c, ok := p.page.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
