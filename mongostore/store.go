// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package mongostore provides a document store backed by MongoDB.
// Filters, pipelines, and batched writes map one-to-one onto their
// MongoDB counterparts, so this backend is the reference the
// in-process ones imitate.
//
// Document ids are MongoDB ObjectIDs, surfaced through the document
// API as 24-character hex strings.
package mongostore

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-framestore/document"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// New connects to the MongoDB deployment at uri and returns a store
// over the named database.
func New(ctx context.Context, uri, database string) (document.Store, error) {
	return NewWithClock(ctx, uri, database, clock.New())
}

// NewWithClock creates a store with an injected clock, which the
// store uses to stamp document modification times.
func NewWithClock(ctx context.Context, uri, database string, clk clock.Clock) (document.Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}
	store := &mongoStore{
		client: client,
		db:     client.Database(database),
		clock:  clk,
	}
	return store, nil
}

type mongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	clock  clock.Clock
}

func (s *mongoStore) Collection(name string) document.Collection {
	return &mongoCollection{store: s, coll: s.db.Collection(name)}
}

func (s *mongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type mongoCollection struct {
	store *mongoStore
	coll  *mongo.Collection
}

func (c *mongoCollection) Name() string {
	return c.coll.Name()
}

func (c *mongoCollection) EnsureKeyIndex(ctx context.Context, fields ...string) error {
	keys := make(bson.D, len(fields))
	for i, f := range fields {
		keys[i] = bson.E{Key: f, Value: 1}
	}
	_, err := c.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetUnique(true),
	})
	return err
}

func (c *mongoCollection) FindOne(ctx context.Context, filter document.Filter) (document.Document, error) {
	var raw bson.M
	err := c.coll.FindOne(ctx, toBSONFilter(filter)).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, document.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromBSON(raw), nil
}

func (c *mongoCollection) Find(ctx context.Context, filter document.Filter, sort ...document.Sort) (document.Cursor, error) {
	opts := options.Find()
	if len(sort) > 0 {
		opts.SetSort(sortBSON(sort))
	}
	cur, err := c.coll.Find(ctx, toBSONFilter(filter), opts)
	if err != nil {
		return nil, err
	}
	return &mongoCursor{cur: cur}, nil
}

func (c *mongoCollection) Aggregate(ctx context.Context, pipe document.Pipeline) (document.Cursor, error) {
	cur, err := c.coll.Aggregate(ctx, toBSONPipeline(pipe))
	if err != nil {
		return nil, err
	}
	return &mongoCursor{cur: cur}, nil
}

func (c *mongoCollection) InsertMany(ctx context.Context, docs []document.Document) ([]document.ID, error) {
	now := c.store.clock.Now().UTC()
	payload := make([]interface{}, len(docs))
	ids := make([]document.ID, len(docs))
	for i, doc := range docs {
		b := toBSON(doc)
		oid := bson.NewObjectID()
		b["_id"] = oid
		b["_created_at"] = now
		b["_last_modified_at"] = now
		payload[i] = b
		ids[i] = document.ID(oid.Hex())
	}
	// Inserts are ordered, so a unique key collision stops the
	// batch; documents before it stay inserted.
	_, err := c.coll.InsertMany(ctx, payload)
	if err != nil {
		return nil, translateWriteErr(err)
	}
	return ids, nil
}

func (c *mongoCollection) BulkWrite(ctx context.Context, ops []document.WriteOp) error {
	if len(ops) == 0 {
		return nil
	}
	now := c.store.clock.Now().UTC()
	models := make([]mongo.WriteModel, 0, len(ops))
	for _, op := range ops {
		switch op := op.(type) {
		case document.ReplaceOne:
			models = append(models, replaceModel(op, now))
		case document.UpdateOne:
			models = append(models, updateModel(op, now))
		case document.DeleteOne:
			models = append(models, mongo.NewDeleteOneModel().
				SetFilter(toBSONFilter(op.Filter)))
		}
	}
	_, err := c.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	return translateWriteErr(err)
}

// replaceModel translates a ReplaceOne into an update pipeline rather
// than a native replace, so the stored document's _created_at survives
// the replacement.  On an upsert insert the pipeline sees no stored
// _created_at and stamps the current time instead.
func replaceModel(op document.ReplaceOne, now time.Time) mongo.WriteModel {
	repl := toBSON(op.Replacement)
	delete(repl, "_id")
	delete(repl, "_created_at")
	repl["_last_modified_at"] = now
	update := bson.A{bson.M{"$replaceWith": bson.M{"$mergeObjects": bson.A{
		repl,
		bson.M{"_created_at": bson.M{"$ifNull": bson.A{"$_created_at", now}}},
	}}}}
	return mongo.NewUpdateOneModel().
		SetFilter(toBSONFilter(op.Filter)).
		SetUpdate(update).
		SetUpsert(op.Upsert)
}

func updateModel(op document.UpdateOne, now time.Time) mongo.WriteModel {
	set := bson.M{"_last_modified_at": now}
	for path, v := range op.Set {
		set[path] = toBSONValue(v)
	}
	update := bson.M{"$set": set}
	if len(op.Unset) > 0 {
		unset := bson.M{}
		for _, path := range op.Unset {
			unset[path] = ""
		}
		update["$unset"] = unset
	}
	if op.Upsert {
		update["$setOnInsert"] = bson.M{"_created_at": now}
	}
	return mongo.NewUpdateOneModel().
		SetFilter(toBSONFilter(op.Filter)).
		SetUpdate(update).
		SetUpsert(op.Upsert)
}

func (c *mongoCollection) DeleteMany(ctx context.Context, filter document.Filter) (int64, error) {
	res, err := c.coll.DeleteMany(ctx, toBSONFilter(filter))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (c *mongoCollection) Drop(ctx context.Context) error {
	return c.coll.Drop(ctx)
}

// translateWriteErr converts the driver's write exceptions to the
// document package's BulkError, preserving server messages verbatim.
func translateWriteErr(err error) error {
	if err == nil {
		return nil
	}
	var bulk mongo.BulkWriteException
	if errors.As(err, &bulk) && len(bulk.WriteErrors) > 0 {
		werrs := make([]document.WriteError, len(bulk.WriteErrors))
		for i, we := range bulk.WriteErrors {
			werrs[i] = document.WriteError{Index: we.Index, Message: we.Message}
		}
		return document.BulkError{Errors: werrs}
	}
	var write mongo.WriteException
	if errors.As(err, &write) && len(write.WriteErrors) > 0 {
		werrs := make([]document.WriteError, len(write.WriteErrors))
		for i, we := range write.WriteErrors {
			werrs[i] = document.WriteError{Index: we.Index, Message: we.Message}
		}
		return document.BulkError{Errors: werrs}
	}
	return err
}

type mongoCursor struct {
	cur *mongo.Cursor
}

func (c *mongoCursor) Next(ctx context.Context) bool {
	return c.cur.Next(ctx)
}

func (c *mongoCursor) Decode(doc *document.Document) error {
	var raw bson.M
	if err := c.cur.Decode(&raw); err != nil {
		return err
	}
	*doc = fromBSON(raw)
	return nil
}

func (c *mongoCursor) Err() error {
	return c.cur.Err()
}

func (c *mongoCursor) Close(ctx context.Context) error {
	return c.cur.Close(ctx)
}
