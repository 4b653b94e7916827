// Package document defines an abstract API to a document store.
//
// A Store holds named Collections of schemaless documents.  Documents
// are open field bags; field names may be dotted paths reaching into
// nested documents and arrays.  The API is deliberately small: point
// lookup, ordered scan, aggregation over a declarative pipeline, and
// batched writes.  Implementations exist backed by process memory
// (memstore), a local bbolt file (boltstore), MongoDB (mongostore),
// and PostgreSQL (pgstore).
//
// All operations take a context.Context, which implementations pass
// through to their underlying drivers where those support it.  Bulk
// writes are unordered and best-effort: some operations in a batch
// may be applied even if the batch as a whole reports an error.
package document

import "context"

// ID is the store-assigned identity of a document, unique within its
// collection.  Backends choose their own representation (UUIDs, hex
// object ids) but always surface it as an opaque string.
type ID string

// Document is a single schemaless document: an open mapping of field
// names to values.  Values are the usual JSON-ish kinds: nil, bool,
// numbers, strings, []interface{}, and nested Documents (or plain
// map[string]interface{}, which readers should treat identically).
type Document map[string]interface{}

// Store is a handle to a document store and the only entry point to
// its collections.
type Store interface {
	// Collection returns a handle to the named collection,
	// creating it on first write if it does not exist.
	Collection(name string) Collection

	// Close releases any resources held by the store.
	Close(ctx context.Context) error
}

// Collection is a named set of documents within a Store.
type Collection interface {
	// Name returns the collection name.
	Name() string

	// EnsureKeyIndex creates a unique compound index over the
	// named fields if one does not already exist.  Inserting or
	// upserting a document whose field tuple collides with an
	// existing document then fails with a BulkError.
	EnsureKeyIndex(ctx context.Context, fields ...string) error

	// FindOne returns the first document matching filter, or
	// ErrNotFound.
	FindOne(ctx context.Context, filter Filter) (Document, error)

	// Find returns a cursor over all documents matching filter,
	// ordered by the given sort keys (unspecified order if none).
	Find(ctx context.Context, filter Filter, sort ...Sort) (Cursor, error)

	// Aggregate runs a pipeline and returns a cursor over its
	// output documents.
	Aggregate(ctx context.Context, pipe Pipeline) (Cursor, error)

	// InsertMany inserts documents in order, assigning each a new
	// ID, and returns the assigned ids by position.  On a
	// constraint violation it stops and returns a BulkError;
	// documents before the failed one remain inserted.
	InsertMany(ctx context.Context, docs []Document) ([]ID, error)

	// BulkWrite applies a batch of write operations.  The batch
	// is unordered: every operation is attempted, and failures
	// are collected into a single BulkError.
	BulkWrite(ctx context.Context, ops []WriteOp) error

	// DeleteMany removes every document matching filter and
	// returns the number removed.
	DeleteMany(ctx context.Context, filter Filter) (int64, error)

	// Drop removes the collection and all its documents.
	Drop(ctx context.Context) error
}

// Cursor iterates over a result set.  The usual loop is
//
//	for cur.Next(ctx) {
//		var doc document.Document
//		if err := cur.Decode(&doc); err != nil { ... }
//	}
//	if err := cur.Err(); err != nil { ... }
//	cur.Close(ctx)
type Cursor interface {
	// Next advances to the next document, returning false when
	// the result set is exhausted or an error occurs.
	Next(ctx context.Context) bool

	// Decode stores the current document into *doc.
	Decode(doc *Document) error

	// Err returns the error, if any, that stopped iteration.
	Err() error

	// Close releases resources held by the cursor.
	Close(ctx context.Context) error
}

// Sort names one sort key for an ordered scan or pipeline stage.
type Sort struct {
	Field string
	Desc  bool
}

// WriteOp is one operation in a BulkWrite batch: a ReplaceOne,
// UpdateOne, or DeleteOne.
type WriteOp interface {
	writeOp()
}

// ReplaceOne replaces the first document matching Filter with
// Replacement, keeping the matched document's id.  If no document
// matches and Upsert is set, Replacement is inserted with a new id.
type ReplaceOne struct {
	Filter      Filter
	Replacement Document
	Upsert      bool
}

// UpdateOne applies a partial update to the first document matching
// Filter: each Set path is assigned and each Unset path removed.  A
// Set path may contain a positional "$" segment directly after an
// array field; the element it addresses is the one whose "_id" the
// filter pinned with a path of the form "arrayfield._id".  If no
// document matches and Upsert is set, a new document is synthesized
// from the filter's equality conditions plus the Set fields ("$"
// paths are skipped in that case).
type UpdateOne struct {
	Filter Filter
	Set    Document
	Unset  []string
	Upsert bool
}

// DeleteOne removes the first document matching Filter.
type DeleteOne struct {
	Filter Filter
}

func (ReplaceOne) writeOp() {}
func (UpdateOne) writeOp()  {}
func (DeleteOne) writeOp()  {}
