// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package documenttest

import (
	"context"
	"errors"
	"time"

	"github.com/diffeo/go-framestore/document"
)

// TestInsertMany checks id assignment, the system timestamp fields,
// and that the caller's documents are left alone.
func (s *Suite) TestInsertMany() {
	ctx := context.Background()
	coll := s.collection()

	doc := document.Document{"name": "only"}
	ids, err := coll.InsertMany(ctx, []document.Document{
		doc,
		{"name": "another"},
	})
	s.Require().NoError(err)
	s.Require().Len(ids, 2)
	s.NotEmpty(ids[0])
	s.NotEqual(ids[0], ids[1])

	// The caller's document is not scribbled on.
	s.NotContains(doc, "_id")
	s.NotContains(doc, "_created_at")
	s.NotContains(doc, "_last_modified_at")

	got, err := coll.FindOne(ctx, document.Filter{"_id": document.Eq(ids[0])})
	s.Require().NoError(err)
	s.Equal("only", got["name"])
	created := s.timeField(got, "_created_at")
	modified := s.timeField(got, "_last_modified_at")
	s.Equal(s.Clock.Now().Unix(), created.Unix())
	s.Equal(created.Unix(), modified.Unix())
}

// TestUniqueKeyIndex checks that a unique key stops an ordered insert
// batch at the first collision.
func (s *Suite) TestUniqueKeyIndex() {
	ctx := context.Background()
	coll := s.collection()
	s.Require().NoError(coll.EnsureKeyIndex(ctx, "sample", "number"))
	// Declaring the same key again is a no-op.
	s.Require().NoError(coll.EnsureKeyIndex(ctx, "sample", "number"))

	ids, err := coll.InsertMany(ctx, []document.Document{
		{"sample": "s1", "number": 1, "tag": "first"},
		{"sample": "s1", "number": 1, "tag": "dup"},
		{"sample": "s1", "number": 2, "tag": "after"},
	})
	s.Require().Error(err)
	s.Nil(ids)
	s.True(document.IsDuplicateKey(err))
	var bulk document.BulkError
	s.Require().True(errors.As(err, &bulk))
	s.Require().Len(bulk.Errors, 1)
	s.Equal(1, bulk.Errors[0].Index)

	// The document before the collision stays; the one after it was
	// never attempted.
	docs := s.find(coll, document.Filter{"sample": document.Eq("s1")})
	s.Require().Len(docs, 1)
	s.Equal("first", docs[0]["tag"])
}

// TestReplaceOne checks whole-document replacement: the id and
// creation time survive, everything else is swapped out.
func (s *Suite) TestReplaceOne() {
	ctx := context.Background()
	coll := s.collection()
	ids := s.insert(coll, document.Document{"name": "orig", "extra": "gone", "n": 1})
	created := s.Clock.Now().Unix()

	s.Clock.Add(5 * time.Second)
	err := coll.BulkWrite(ctx, []document.WriteOp{
		document.ReplaceOne{
			Filter:      document.Filter{"_id": document.Eq(ids[0])},
			Replacement: document.Document{"name": "replaced", "n": 2},
		},
	})
	s.Require().NoError(err)

	got, err := coll.FindOne(ctx, document.Filter{"_id": document.Eq(ids[0])})
	s.Require().NoError(err)
	s.Equal("replaced", got["name"])
	s.NotContains(got, "extra")
	s.EqualValues(2, s.intField(got, "n"))
	s.Equal(created, s.timeField(got, "_created_at").Unix())
	s.Equal(created+5, s.timeField(got, "_last_modified_at").Unix())

	// With no match and no Upsert, nothing happens.
	err = coll.BulkWrite(ctx, []document.WriteOp{
		document.ReplaceOne{
			Filter:      document.Filter{"name": document.Eq("missing")},
			Replacement: document.Document{"name": "ghost"},
		},
	})
	s.Require().NoError(err)
	_, err = coll.FindOne(ctx, document.Filter{"name": document.Eq("ghost")})
	s.Equal(document.ErrNotFound, err)

	// With Upsert, the new document takes the id the filter pinned.
	pinned := document.ID("frame-00042")
	err = coll.BulkWrite(ctx, []document.WriteOp{
		document.ReplaceOne{
			Filter:      document.Filter{"_id": document.Eq(pinned)},
			Replacement: document.Document{"name": "upserted"},
			Upsert:      true,
		},
	})
	s.Require().NoError(err)
	got, err = coll.FindOne(ctx, document.Filter{"_id": document.Eq(pinned)})
	s.Require().NoError(err)
	s.Equal("upserted", got["name"])
}

// TestUpdateOne checks partial updates: nested sets and unsets,
// positional array element updates, and upsert synthesis.
func (s *Suite) TestUpdateOne() {
	ctx := context.Background()
	coll := s.collection()
	ids := s.insert(coll, document.Document{
		"name": "doc",
		"meta": map[string]interface{}{"a": 1, "b": 2},
		"elems": []interface{}{
			map[string]interface{}{"_id": "e1", "v": 1},
			map[string]interface{}{"_id": "e2", "v": 2},
		},
	})

	err := coll.BulkWrite(ctx, []document.WriteOp{
		document.UpdateOne{
			Filter: document.Filter{"_id": document.Eq(ids[0])},
			Set:    document.Document{"meta.c": 3, "top": "added"},
			Unset:  []string{"meta.a"},
		},
	})
	s.Require().NoError(err)
	got, err := coll.FindOne(ctx, document.Filter{"_id": document.Eq(ids[0])})
	s.Require().NoError(err)
	s.Equal("added", got["top"])
	meta := s.subdoc(got["meta"])
	s.NotContains(meta, "a")
	s.EqualValues(2, s.intField(meta, "b"))
	s.EqualValues(3, s.intField(meta, "c"))

	// A positional update replaces only the element the filter pinned.
	err = coll.BulkWrite(ctx, []document.WriteOp{
		document.UpdateOne{
			Filter: document.Filter{
				"_id":       document.Eq(ids[0]),
				"elems._id": document.Eq("e1"),
			},
			Set: document.Document{
				"elems.$": map[string]interface{}{"_id": "e1", "v": 10},
			},
		},
	})
	s.Require().NoError(err)
	got, err = coll.FindOne(ctx, document.Filter{"_id": document.Eq(ids[0])})
	s.Require().NoError(err)
	elems, ok := got["elems"].([]interface{})
	s.Require().True(ok, "elems is %#v", got["elems"])
	s.Require().Len(elems, 2)
	byID := map[string]int64{}
	for _, e := range elems {
		elem := s.subdoc(e)
		id, _ := document.IDOf(elem["_id"])
		byID[string(id)] = s.intField(elem, "v")
	}
	s.Equal(map[string]int64{"e1": 10, "e2": 2}, byID)

	// An upsert synthesizes the document from the filter's equality
	// conditions plus the set fields.
	err = coll.BulkWrite(ctx, []document.WriteOp{
		document.UpdateOne{
			Filter: document.Filter{
				"name":  document.Eq("fresh"),
				"group": document.Eq("g"),
			},
			Set:    document.Document{"v": 7},
			Upsert: true,
		},
	})
	s.Require().NoError(err)
	got, err = coll.FindOne(ctx, document.Filter{"name": document.Eq("fresh")})
	s.Require().NoError(err)
	s.Equal("g", got["group"])
	s.EqualValues(7, s.intField(got, "v"))
	s.Contains(got, "_id")
	s.Contains(got, "_created_at")
}

// TestDeleteOneAndMany checks single and bulk deletion.
func (s *Suite) TestDeleteOneAndMany() {
	ctx := context.Background()
	coll := s.collection()
	s.insert(coll,
		document.Document{"name": "a", "group": "odd"},
		document.Document{"name": "b", "group": "even"},
		document.Document{"name": "c", "group": "odd"},
		document.Document{"name": "d", "group": "even"},
	)

	err := coll.BulkWrite(ctx, []document.WriteOp{
		document.DeleteOne{Filter: document.Filter{"name": document.Eq("a")}},
	})
	s.Require().NoError(err)
	s.Len(s.find(coll, nil), 3)

	// Deleting something already gone is not an error.
	err = coll.BulkWrite(ctx, []document.WriteOp{
		document.DeleteOne{Filter: document.Filter{"name": document.Eq("a")}},
	})
	s.Require().NoError(err)

	n, err := coll.DeleteMany(ctx, document.Filter{"group": document.Eq("even")})
	s.Require().NoError(err)
	s.EqualValues(2, n)
	s.Equal([]string{"c"}, s.names(s.find(coll, nil)))

	// An empty filter deletes everything.
	n, err = coll.DeleteMany(ctx, nil)
	s.Require().NoError(err)
	s.EqualValues(1, n)
	s.Empty(s.find(coll, nil))
}

// TestBulkWriteCollectsErrors checks that a batch is unordered: a
// failing operation does not stop the ones after it, and the failures
// come back in one BulkError.
func (s *Suite) TestBulkWriteCollectsErrors() {
	ctx := context.Background()
	coll := s.collection()
	s.Require().NoError(coll.EnsureKeyIndex(ctx, "key"))
	ids := s.insert(coll,
		document.Document{"key": "k1", "state": "old"},
		document.Document{"key": "k2", "state": "old"},
	)

	// The first operation collides with the second document's unique
	// key; the second operation still applies.
	err := coll.BulkWrite(ctx, []document.WriteOp{
		document.ReplaceOne{
			Filter:      document.Filter{"_id": document.Eq(ids[0])},
			Replacement: document.Document{"key": "k2", "state": "clash"},
		},
		document.UpdateOne{
			Filter: document.Filter{"_id": document.Eq(ids[1])},
			Set:    document.Document{"state": "new"},
		},
	})
	s.Require().Error(err)
	s.True(document.IsDuplicateKey(err))
	var bulk document.BulkError
	s.Require().True(errors.As(err, &bulk))
	s.Require().Len(bulk.Errors, 1)
	s.Equal(0, bulk.Errors[0].Index)

	got, err := coll.FindOne(ctx, document.Filter{"_id": document.Eq(ids[1])})
	s.Require().NoError(err)
	s.Equal("new", got["state"])

	// The failed replacement left its target untouched.
	got, err = coll.FindOne(ctx, document.Filter{"_id": document.Eq(ids[0])})
	s.Require().NoError(err)
	s.Equal("old", got["state"])
	s.Equal("k1", got["key"])
}

// TestDrop checks that dropping a collection empties it and that
// writes afterwards recreate it.
func (s *Suite) TestDrop() {
	ctx := context.Background()
	coll := s.collection()
	s.insert(coll, document.Document{"name": "a"})

	s.Require().NoError(coll.Drop(ctx))
	s.Empty(s.find(coll, nil))
	_, err := coll.FindOne(ctx, document.Filter{"name": document.Eq("a")})
	s.Equal(document.ErrNotFound, err)

	// Dropping a collection that does not exist is fine, and writing
	// through the old handle recreates it.
	s.Require().NoError(coll.Drop(ctx))
	s.insert(coll, document.Document{"name": "b"})
	s.Len(s.find(coll, nil), 1)

	// A fresh handle sees the recreated collection too.
	again := s.Store.Collection(coll.Name())
	s.Len(s.find(again, nil), 1)
}
