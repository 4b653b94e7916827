// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package boltstore provides a document store backed by a local
// bbolt file, with documents encoded as msgpack.  It gives a single
// process durable storage without running a database server.
//
// Each collection is a top-level bucket holding a "docs" bucket
// (document id to msgpack-encoded body) and a "meta" bucket (unique
// index definitions).  Queries decode and scan the whole collection;
// like memstore, this backend is tuned for correctness and local data
// sizes, not throughput.
package boltstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-framestore/document"
	"github.com/satori/go.uuid"
	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"
)

var (
	docsBucket = []byte("docs")
	metaBucket = []byte("meta")
	indexesKey = []byte("indexes")
	errNoMatch = fmt.Errorf("no matching document")
)

// New opens (creating if needed) a bolt-backed document store at
// path.
func New(path string) (document.Store, error) {
	return NewWithClock(path, clock.New())
}

// NewWithClock opens a bolt-backed document store with an explicit
// time source.
func NewWithClock(path string, c clock.Clock) (document.Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &boltStore{db: db, clock: c}, nil
}

type boltStore struct {
	db    *bolt.DB
	clock clock.Clock
	sem   sync.Mutex
}

func (s *boltStore) Collection(name string) document.Collection {
	return &boltCollection{store: s, name: name}
}

func (s *boltStore) Close(ctx context.Context) error {
	return s.db.Close()
}

type boltCollection struct {
	store *boltStore
	name  string
}

func (c *boltCollection) Name() string {
	return c.name
}

func (c *boltCollection) buckets(tx *bolt.Tx, create bool) (docs, meta *bolt.Bucket, err error) {
	root := tx.Bucket([]byte(c.name))
	if root == nil {
		if !create {
			return nil, nil, nil
		}
		root, err = tx.CreateBucket([]byte(c.name))
		if err != nil {
			return nil, nil, err
		}
	}
	docs = root.Bucket(docsBucket)
	if docs == nil && create {
		if docs, err = root.CreateBucket(docsBucket); err != nil {
			return nil, nil, err
		}
	}
	meta = root.Bucket(metaBucket)
	if meta == nil && create {
		if meta, err = root.CreateBucket(metaBucket); err != nil {
			return nil, nil, err
		}
	}
	return docs, meta, nil
}

func decodeDoc(b []byte) (document.Document, error) {
	var m map[string]interface{}
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	doc := document.Document(m)
	// msgpack hands ids back as plain strings.
	if id, ok := document.IDOf(doc["_id"]); ok {
		doc["_id"] = id
	}
	return doc, nil
}

func encodeDoc(doc document.Document) ([]byte, error) {
	b, err := msgpack.Marshal(map[string]interface{}(doc))
	if err != nil {
		return nil, fmt.Errorf("encoding document: %w", err)
	}
	return b, nil
}

// scan decodes every document in the collection, in key order.
func (c *boltCollection) scan(tx *bolt.Tx) ([]document.Document, error) {
	docs, _, err := c.buckets(tx, false)
	if err != nil || docs == nil {
		return nil, err
	}
	var out []document.Document
	err = docs.ForEach(func(k, v []byte) error {
		doc, err := decodeDoc(v)
		if err != nil {
			return err
		}
		out = append(out, doc)
		return nil
	})
	return out, err
}

func (c *boltCollection) loadIndexes(meta *bolt.Bucket) ([][]string, error) {
	if meta == nil {
		return nil, nil
	}
	raw := meta.Get(indexesKey)
	if raw == nil {
		return nil, nil
	}
	var indexes [][]string
	if err := msgpack.Unmarshal(raw, &indexes); err != nil {
		return nil, fmt.Errorf("decoding index definitions: %w", err)
	}
	return indexes, nil
}

func (c *boltCollection) EnsureKeyIndex(ctx context.Context, fields ...string) error {
	c.store.sem.Lock()
	defer c.store.sem.Unlock()

	return c.store.db.Update(func(tx *bolt.Tx) error {
		_, meta, err := c.buckets(tx, true)
		if err != nil {
			return err
		}
		indexes, err := c.loadIndexes(meta)
		if err != nil {
			return err
		}
		for _, existing := range indexes {
			if equalFields(existing, fields) {
				return nil
			}
		}
		indexes = append(indexes, fields)
		raw, err := msgpack.Marshal(indexes)
		if err != nil {
			return err
		}
		return meta.Put(indexesKey, raw)
	})
}

func (c *boltCollection) FindOne(ctx context.Context, filter document.Filter) (document.Document, error) {
	c.store.sem.Lock()
	defer c.store.sem.Unlock()

	var found document.Document
	err := c.store.db.View(func(tx *bolt.Tx) error {
		docs, err := c.scan(tx)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if filter.Matches(doc) {
				found = doc
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, document.ErrNotFound
	}
	return found, nil
}

func (c *boltCollection) Find(ctx context.Context, filter document.Filter, sortKeys ...document.Sort) (document.Cursor, error) {
	c.store.sem.Lock()
	defer c.store.sem.Unlock()

	var out []document.Document
	err := c.store.db.View(func(tx *bolt.Tx) error {
		docs, err := c.scan(tx)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if filter.Matches(doc) {
				out = append(out, doc)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(sortKeys) > 0 {
		out = document.Pipeline{document.SortBy(sortKeys...)}.Apply(out)
	}
	return document.NewSliceCursor(out), nil
}

func (c *boltCollection) Aggregate(ctx context.Context, pipe document.Pipeline) (document.Cursor, error) {
	c.store.sem.Lock()
	defer c.store.sem.Unlock()

	var docs []document.Document
	err := c.store.db.View(func(tx *bolt.Tx) error {
		var err error
		docs, err = c.scan(tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return document.NewSliceCursor(pipe.Apply(docs)), nil
}

func (c *boltCollection) InsertMany(ctx context.Context, docs []document.Document) ([]document.ID, error) {
	c.store.sem.Lock()
	defer c.store.sem.Unlock()

	now := c.store.clock.Now().UTC()
	var ids []document.ID
	var bulkErr *document.BulkError

	err := c.store.db.Update(func(tx *bolt.Tx) error {
		bucket, meta, err := c.buckets(tx, true)
		if err != nil {
			return err
		}
		indexes, err := c.loadIndexes(meta)
		if err != nil {
			return err
		}
		existing, err := c.scan(tx)
		if err != nil {
			return err
		}
		for i, doc := range docs {
			stored := document.Clone(doc)
			id := document.ID(uuid.NewV4().String())
			stored["_id"] = id
			stored["_created_at"] = now
			stored["_last_modified_at"] = now

			if msg, dup := violatesIndex(existing, indexes, stored, c.name); dup {
				// Keep the documents inserted so far; the
				// batch is best-effort, not atomic.
				bulkErr = &document.BulkError{Errors: []document.WriteError{
					{Index: i, Message: msg},
				}}
				return nil
			}
			raw, err := encodeDoc(stored)
			if err != nil {
				return err
			}
			if err := bucket.Put([]byte(id), raw); err != nil {
				return err
			}
			existing = append(existing, stored)
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if bulkErr != nil {
		return nil, *bulkErr
	}
	return ids, nil
}

func (c *boltCollection) BulkWrite(ctx context.Context, ops []document.WriteOp) error {
	c.store.sem.Lock()
	defer c.store.sem.Unlock()

	var errs []document.WriteError
	err := c.store.db.Update(func(tx *bolt.Tx) error {
		bucket, meta, err := c.buckets(tx, true)
		if err != nil {
			return err
		}
		indexes, err := c.loadIndexes(meta)
		if err != nil {
			return err
		}
		now := c.store.clock.Now().UTC()
		for i, op := range ops {
			var opErr error
			switch op := op.(type) {
			case document.ReplaceOne:
				opErr = c.replaceOne(bucket, indexes, op, now)
			case document.UpdateOne:
				opErr = c.updateOne(bucket, indexes, op, now)
			case document.DeleteOne:
				opErr = c.deleteOne(bucket, op)
			default:
				opErr = fmt.Errorf("unsupported write operation %T", op)
			}
			if opErr != nil {
				errs = append(errs, document.WriteError{Index: i, Message: opErr.Error()})
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		return document.BulkError{Errors: errs}
	}
	return nil
}

func (c *boltCollection) DeleteMany(ctx context.Context, filter document.Filter) (int64, error) {
	c.store.sem.Lock()
	defer c.store.sem.Unlock()

	var removed int64
	err := c.store.db.Update(func(tx *bolt.Tx) error {
		bucket, _, err := c.buckets(tx, false)
		if err != nil || bucket == nil {
			return err
		}
		var victims [][]byte
		err = bucket.ForEach(func(k, v []byte) error {
			doc, err := decodeDoc(v)
			if err != nil {
				return err
			}
			if filter.Matches(doc) {
				key := make([]byte, len(k))
				copy(key, k)
				victims = append(victims, key)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range victims {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		removed = int64(len(victims))
		return nil
	})
	return removed, err
}

func (c *boltCollection) Drop(ctx context.Context) error {
	c.store.sem.Lock()
	defer c.store.sem.Unlock()

	return c.store.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(c.name)) == nil {
			return nil
		}
		return tx.DeleteBucket([]byte(c.name))
	})
}

func (c *boltCollection) findFirst(bucket *bolt.Bucket, filter document.Filter) (document.ID, document.Document, error) {
	var id document.ID
	var found document.Document
	err := bucket.ForEach(func(k, v []byte) error {
		if found != nil {
			return nil
		}
		doc, err := decodeDoc(v)
		if err != nil {
			return err
		}
		if filter.Matches(doc) {
			id = document.ID(k)
			found = doc
		}
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	if found == nil {
		return "", nil, errNoMatch
	}
	return id, found, nil
}

func (c *boltCollection) put(bucket *bolt.Bucket, id document.ID, doc document.Document) error {
	raw, err := encodeDoc(doc)
	if err != nil {
		return err
	}
	return bucket.Put([]byte(id), raw)
}

func (c *boltCollection) others(bucket *bolt.Bucket, skip document.ID) ([]document.Document, error) {
	var out []document.Document
	err := bucket.ForEach(func(k, v []byte) error {
		if string(k) == string(skip) {
			return nil
		}
		doc, err := decodeDoc(v)
		if err != nil {
			return err
		}
		out = append(out, doc)
		return nil
	})
	return out, err
}

func (c *boltCollection) replaceOne(bucket *bolt.Bucket, indexes [][]string, op document.ReplaceOne, now time.Time) error {
	id, old, err := c.findFirst(bucket, op.Filter)
	if err == errNoMatch {
		if !op.Upsert {
			return nil
		}
		stored := document.Clone(op.Replacement)
		// An upserted document keeps the id the filter pinned, the
		// way MongoDB does.
		if pinned, ok := document.UpsertFromFilter(op.Filter)["_id"]; ok {
			stored["_id"] = pinned
		} else if _, ok := stored["_id"]; !ok {
			stored["_id"] = document.ID(uuid.NewV4().String())
		}
		newID, _ := document.IDOf(stored["_id"])
		stored["_created_at"] = now
		stored["_last_modified_at"] = now
		rest, err := c.others(bucket, newID)
		if err != nil {
			return err
		}
		if msg, dup := violatesIndex(rest, indexes, stored, c.name); dup {
			return fmt.Errorf("%s", msg)
		}
		return c.put(bucket, newID, stored)
	}
	if err != nil {
		return err
	}
	stored := document.Clone(op.Replacement)
	stored["_id"] = id
	if created, ok := old["_created_at"]; ok {
		stored["_created_at"] = created
	}
	stored["_last_modified_at"] = now
	rest, err := c.others(bucket, id)
	if err != nil {
		return err
	}
	if msg, dup := violatesIndex(rest, indexes, stored, c.name); dup {
		return fmt.Errorf("%s", msg)
	}
	return c.put(bucket, id, stored)
}

func (c *boltCollection) updateOne(bucket *bolt.Bucket, indexes [][]string, op document.UpdateOne, now time.Time) error {
	id, doc, err := c.findFirst(bucket, op.Filter)
	if err == errNoMatch {
		if !op.Upsert {
			return nil
		}
		stored := document.UpsertFromFilter(op.Filter)
		if err := document.ApplyUpdate(stored, op); err != nil {
			return err
		}
		if _, ok := stored["_id"]; !ok {
			stored["_id"] = document.ID(uuid.NewV4().String())
		}
		newID, _ := document.IDOf(stored["_id"])
		stored["_created_at"] = now
		stored["_last_modified_at"] = now
		rest, err := c.others(bucket, newID)
		if err != nil {
			return err
		}
		if msg, dup := violatesIndex(rest, indexes, stored, c.name); dup {
			return fmt.Errorf("%s", msg)
		}
		return c.put(bucket, newID, stored)
	}
	if err != nil {
		return err
	}
	if err := document.ApplyUpdate(doc, op); err != nil {
		return err
	}
	doc["_last_modified_at"] = now
	rest, err := c.others(bucket, id)
	if err != nil {
		return err
	}
	if msg, dup := violatesIndex(rest, indexes, doc, c.name); dup {
		return fmt.Errorf("%s", msg)
	}
	return c.put(bucket, id, doc)
}

func (c *boltCollection) deleteOne(bucket *bolt.Bucket, op document.DeleteOne) error {
	id, _, err := c.findFirst(bucket, op.Filter)
	if err == errNoMatch {
		return nil
	}
	if err != nil {
		return err
	}
	return bucket.Delete([]byte(id))
}

// violatesIndex reports whether doc collides with any document in
// others on one of the unique indexes.
func violatesIndex(others []document.Document, indexes [][]string, doc document.Document, collection string) (string, bool) {
	for _, fields := range indexes {
		key, ok := indexKey(doc, fields)
		if !ok {
			continue
		}
		for _, other := range others {
			otherKey, ok := indexKey(other, fields)
			if ok && key == otherKey {
				return fmt.Sprintf("duplicate key: %v=%s in collection %q",
					fields, key, collection), true
			}
		}
	}
	return "", false
}

func indexKey(doc document.Document, fields []string) (string, bool) {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		v, ok := doc[f]
		if !ok {
			return "", false
		}
		parts = append(parts, fmt.Sprintf("%v", v))
	}
	return fmt.Sprintf("%q", parts), true
}

func equalFields(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
