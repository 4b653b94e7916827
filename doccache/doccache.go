// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package doccache provides read-through caching of point lookups over
// a document store.  The cache wraps some other document.Store backend.
// FindOne results are held in a fixed-size LRU per collection, keyed by
// a canonical encoding of the filter; every other method passes through
// to the underlying collection, and any write through the wrapper
// invalidates the whole collection's cached lookups.
//
// Caveats
//
// Invalidation only sees writes that go through this wrapper.  If some
// other process, or another handle on the same backend, writes to a
// collection, cached lookups stay stale until they age out or a write
// arrives through the wrapper.  Deployments that share a store between
// writers should wrap only the reading side, or skip the cache.
//
// Cursor-returning methods (Find, Aggregate) are not cached; there is
// not a good way to key an open scan, and the frame layer's hot path is
// the point lookup anyway.
package doccache

import (
	"context"
	"sync"

	"github.com/ugorji/go/codec"

	"github.com/diffeo/go-framestore/document"
)

// DefaultSize is the per-collection lookup capacity used when New is
// given a size of zero or less.
const DefaultSize = 1024

type cache struct {
	backend document.Store
	size    int

	lock        sync.Mutex
	collections map[string]*collection
}

// New creates a new caching store, wrapping some other backend.  Each
// collection caches up to size FindOne results.
func New(backend document.Store, size int) document.Store {
	if size <= 0 {
		size = DefaultSize
	}
	return &cache{
		backend:     backend,
		size:        size,
		collections: make(map[string]*collection),
	}
}

func (c *cache) Collection(name string) document.Collection {
	c.lock.Lock()
	defer c.lock.Unlock()

	if coll, ok := c.collections[name]; ok {
		return coll
	}
	coll := &collection{
		backend: c.backend.Collection(name),
		lookups: newLRU(c.size),
	}
	c.collections[name] = coll
	return coll
}

func (c *cache) Close(ctx context.Context) error {
	return c.backend.Close(ctx)
}

// collection decorates one document.Collection with the lookup cache.
type collection struct {
	backend document.Collection
	lookups *lru
}

func (c *collection) Name() string { return c.backend.Name() }

func (c *collection) EnsureKeyIndex(ctx context.Context, fields ...string) error {
	return c.backend.EnsureKeyIndex(ctx, fields...)
}

// FindOne consults the lookup cache first.  Documents are cloned on the
// way in and out, so callers can edit what they get back without
// corrupting the cache.  Not-found results are not cached; a miss goes
// back to the backend every time until the document exists.
func (c *collection) FindOne(ctx context.Context, filter document.Filter) (document.Document, error) {
	key, err := filterKey(filter)
	if err != nil {
		return c.backend.FindOne(ctx, filter)
	}
	v, err := c.lookups.Get(key, func() (interface{}, error) {
		doc, err := c.backend.FindOne(ctx, filter)
		if err != nil {
			return nil, err
		}
		return document.Clone(doc), nil
	})
	if err != nil {
		return nil, err
	}
	return document.Clone(v.(document.Document)), nil
}

func (c *collection) Find(ctx context.Context, filter document.Filter, sorts ...document.Sort) (document.Cursor, error) {
	return c.backend.Find(ctx, filter, sorts...)
}

func (c *collection) Aggregate(ctx context.Context, pipe document.Pipeline) (document.Cursor, error) {
	return c.backend.Aggregate(ctx, pipe)
}

// The write methods purge after the backend call, errors included: a
// failed batch can still have applied a prefix.

func (c *collection) InsertMany(ctx context.Context, docs []document.Document) ([]document.ID, error) {
	ids, err := c.backend.InsertMany(ctx, docs)
	c.lookups.Purge()
	return ids, err
}

func (c *collection) BulkWrite(ctx context.Context, ops []document.WriteOp) error {
	err := c.backend.BulkWrite(ctx, ops)
	c.lookups.Purge()
	return err
}

func (c *collection) DeleteMany(ctx context.Context, filter document.Filter) (int64, error) {
	n, err := c.backend.DeleteMany(ctx, filter)
	c.lookups.Purge()
	return n, err
}

func (c *collection) Drop(ctx context.Context) error {
	err := c.backend.Drop(ctx)
	c.lookups.Purge()
	return err
}

// filterKey builds the cache key for a filter: a canonical CBOR
// encoding, stable across Go's randomized map order.
func filterKey(filter document.Filter) (string, error) {
	cbor := new(codec.CborHandle)
	cbor.Canonical = true
	var out []byte
	encoder := codec.NewEncoderBytes(&out, cbor)
	if err := encoder.Encode(filter); err != nil {
		return "", err
	}
	return string(out), nil
}
