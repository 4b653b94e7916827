// Package memstore provides an in-process, in-memory implementation
// of a document store.  There is no persistence, nor any sharing
// between processes.  The entire store is behind a single global
// mutex to protect against concurrent updates; in some cases this can
// limit performance in the name of correctness.
//
// This is mostly intended as a simple reference implementation that
// can be used for testing, including in-process testing of
// higher-level components.  It is tuned for correctness, not
// performance or scalability: write operations rescan the collection
// to enforce unique indexes rather than maintaining index structures.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-framestore/document"
	"github.com/satori/go.uuid"
)

// New creates a document store that operates purely in memory,
// stamping write times from the wall clock.
func New() document.Store {
	return NewWithClock(clock.New())
}

// NewWithClock creates an in-memory document store with an explicit
// time source.  Tests use this with a mock clock to get
// deterministic "_created_at" and "_last_modified_at" values.
func NewWithClock(c clock.Clock) document.Store {
	return &memStore{
		collections: make(map[string]*memCollection),
		clock:       c,
	}
}

type memStore struct {
	collections map[string]*memCollection
	clock       clock.Clock
	sem         sync.Mutex
}

func (s *memStore) Collection(name string) document.Collection {
	s.sem.Lock()
	defer s.sem.Unlock()

	if coll, ok := s.collections[name]; ok {
		return coll
	}
	coll := &memCollection{store: s, name: name}
	s.collections[name] = coll
	return coll
}

func (s *memStore) Close(ctx context.Context) error {
	return nil
}

type memCollection struct {
	store   *memStore
	name    string
	docs    []document.Document
	indexes [][]string
}

func (c *memCollection) Name() string {
	return c.name
}

func (c *memCollection) EnsureKeyIndex(ctx context.Context, fields ...string) error {
	c.store.sem.Lock()
	defer c.store.sem.Unlock()

	for _, existing := range c.indexes {
		if equalFields(existing, fields) {
			return nil
		}
	}
	c.indexes = append(c.indexes, fields)
	return nil
}

func (c *memCollection) FindOne(ctx context.Context, filter document.Filter) (document.Document, error) {
	c.store.sem.Lock()
	defer c.store.sem.Unlock()

	for _, doc := range c.docs {
		if filter.Matches(doc) {
			return document.Clone(doc), nil
		}
	}
	return nil, document.ErrNotFound
}

func (c *memCollection) Find(ctx context.Context, filter document.Filter, sortKeys ...document.Sort) (document.Cursor, error) {
	c.store.sem.Lock()
	defer c.store.sem.Unlock()

	var out []document.Document
	for _, doc := range c.docs {
		if filter.Matches(doc) {
			out = append(out, document.Clone(doc))
		}
	}
	if len(sortKeys) > 0 {
		pipe := document.Pipeline{document.SortBy(sortKeys...)}
		out = pipe.Apply(out)
	}
	return document.NewSliceCursor(out), nil
}

func (c *memCollection) Aggregate(ctx context.Context, pipe document.Pipeline) (document.Cursor, error) {
	c.store.sem.Lock()
	defer c.store.sem.Unlock()

	docs := make([]document.Document, len(c.docs))
	for i, doc := range c.docs {
		docs[i] = document.Clone(doc)
	}
	return document.NewSliceCursor(pipe.Apply(docs)), nil
}

func (c *memCollection) InsertMany(ctx context.Context, docs []document.Document) ([]document.ID, error) {
	c.store.sem.Lock()
	defer c.store.sem.Unlock()

	now := c.store.clock.Now().UTC()
	ids := make([]document.ID, 0, len(docs))
	for i, doc := range docs {
		stored := document.Clone(doc)
		id := document.ID(uuid.NewV4().String())
		stored["_id"] = id
		stored["_created_at"] = now
		stored["_last_modified_at"] = now

		if msg, ok := c.violatesIndex(stored, -1); ok {
			return nil, document.BulkError{Errors: []document.WriteError{
				{Index: i, Message: msg},
			}}
		}
		c.docs = append(c.docs, stored)
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *memCollection) BulkWrite(ctx context.Context, ops []document.WriteOp) error {
	c.store.sem.Lock()
	defer c.store.sem.Unlock()

	var errs []document.WriteError
	for i, op := range ops {
		var err error
		switch op := op.(type) {
		case document.ReplaceOne:
			err = c.replaceOne(op)
		case document.UpdateOne:
			err = c.updateOne(op)
		case document.DeleteOne:
			c.deleteOne(op)
		default:
			err = fmt.Errorf("unsupported write operation %T", op)
		}
		if err != nil {
			errs = append(errs, document.WriteError{Index: i, Message: err.Error()})
		}
	}
	if len(errs) > 0 {
		return document.BulkError{Errors: errs}
	}
	return nil
}

func (c *memCollection) DeleteMany(ctx context.Context, filter document.Filter) (int64, error) {
	c.store.sem.Lock()
	defer c.store.sem.Unlock()

	var kept []document.Document
	var removed int64
	for _, doc := range c.docs {
		if filter.Matches(doc) {
			removed++
		} else {
			kept = append(kept, doc)
		}
	}
	c.docs = kept
	return removed, nil
}

func (c *memCollection) Drop(ctx context.Context) error {
	c.store.sem.Lock()
	defer c.store.sem.Unlock()

	// The handle stays registered so that, as in MongoDB, writes
	// through it after a drop recreate the collection.
	c.docs = nil
	c.indexes = nil
	return nil
}

func (c *memCollection) replaceOne(op document.ReplaceOne) error {
	now := c.store.clock.Now().UTC()
	for i, doc := range c.docs {
		if !op.Filter.Matches(doc) {
			continue
		}
		stored := document.Clone(op.Replacement)
		stored["_id"] = doc["_id"]
		if created, ok := doc["_created_at"]; ok {
			stored["_created_at"] = created
		}
		stored["_last_modified_at"] = now
		if msg, dup := c.violatesIndex(stored, i); dup {
			return fmt.Errorf("%s", msg)
		}
		c.docs[i] = stored
		return nil
	}
	if !op.Upsert {
		return nil
	}
	stored := document.Clone(op.Replacement)
	// An upserted document keeps the id the filter pinned, the way
	// MongoDB does; only a filter with no id produces a fresh one.
	if id, ok := document.UpsertFromFilter(op.Filter)["_id"]; ok {
		stored["_id"] = id
	} else if _, ok := stored["_id"]; !ok {
		stored["_id"] = document.ID(uuid.NewV4().String())
	}
	stored["_created_at"] = now
	stored["_last_modified_at"] = now
	if msg, dup := c.violatesIndex(stored, -1); dup {
		return fmt.Errorf("%s", msg)
	}
	c.docs = append(c.docs, stored)
	return nil
}

func (c *memCollection) updateOne(op document.UpdateOne) error {
	now := c.store.clock.Now().UTC()
	for i, doc := range c.docs {
		if !op.Filter.Matches(doc) {
			continue
		}
		updated := document.Clone(doc)
		if err := document.ApplyUpdate(updated, op); err != nil {
			return err
		}
		updated["_last_modified_at"] = now
		if msg, dup := c.violatesIndex(updated, i); dup {
			return fmt.Errorf("%s", msg)
		}
		c.docs[i] = updated
		return nil
	}
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
	stored["_created_at"] = now
	stored["_last_modified_at"] = now
	if msg, dup := c.violatesIndex(stored, -1); dup {
		return fmt.Errorf("%s", msg)
	}
	c.docs = append(c.docs, stored)
	return nil
}

func (c *memCollection) deleteOne(op document.DeleteOne) {
	for i, doc := range c.docs {
		if op.Filter.Matches(doc) {
			c.docs = append(c.docs[:i], c.docs[i+1:]...)
			return
		}
	}
}

// violatesIndex reports whether doc collides with another document on
// any unique index.  skip is the position of the document being
// replaced, or -1 for inserts.
func (c *memCollection) violatesIndex(doc document.Document, skip int) (string, bool) {
	for _, fields := range c.indexes {
		key, ok := indexKey(doc, fields)
		if !ok {
			continue
		}
		for i, other := range c.docs {
			if i == skip {
				continue
			}
			otherKey, ok := indexKey(other, fields)
			if ok && key == otherKey {
				return fmt.Sprintf("duplicate key: %s=%s in collection %q",
					fieldList(fields), key, c.name), true
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

func fieldList(fields []string) string {
	sorted := make([]string, len(fields))
	copy(sorted, fields)
	sort.Strings(sorted)
	return "(" + strings.Join(sorted, ",") + ")"
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
