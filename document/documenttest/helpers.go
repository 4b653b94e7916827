// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package documenttest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/diffeo/go-framestore/document"
)

// ---------------------------------------------------------------------------
// Support functions for common tests

// collection returns an empty collection named after the running test,
// dropping whatever a previous run may have left in it.
func (s *Suite) collection() document.Collection {
	name := strings.ReplaceAll(s.T().Name(), "/", "_")
	err := s.Store.Collection(name).Drop(context.Background())
	s.Require().NoError(err)
	return s.Store.Collection(name)
}

// insert adds docs to coll, requiring success and one id per document.
func (s *Suite) insert(coll document.Collection, docs ...document.Document) []document.ID {
	ids, err := coll.InsertMany(context.Background(), docs)
	s.Require().NoError(err)
	s.Require().Len(ids, len(docs))
	return ids
}

// find fetches every document matching filter, in sort order.
func (s *Suite) find(coll document.Collection, filter document.Filter, sort ...document.Sort) []document.Document {
	cur, err := coll.Find(context.Background(), filter, sort...)
	s.Require().NoError(err)
	return s.all(cur)
}

// aggregate runs pipe and returns its output documents.
func (s *Suite) aggregate(coll document.Collection, pipe document.Pipeline) []document.Document {
	cur, err := coll.Aggregate(context.Background(), pipe)
	s.Require().NoError(err)
	return s.all(cur)
}

// all drains cur, failing the test on any cursor error.
func (s *Suite) all(cur document.Cursor) []document.Document {
	ctx := context.Background()
	var out []document.Document
	for cur.Next(ctx) {
		var doc document.Document
		s.Require().NoError(cur.Decode(&doc))
		out = append(out, doc)
	}
	s.Require().NoError(cur.Err())
	s.Require().NoError(cur.Close(ctx))
	return out
}

// names projects the "name" field out of docs, in order.
func (s *Suite) names(docs []document.Document) []string {
	out := make([]string, 0, len(docs))
	for _, doc := range docs {
		name, _ := doc["name"].(string)
		out = append(out, name)
	}
	return out
}

// intField returns doc[field] as an int64, tolerating each backend's
// numeric representation.
func (s *Suite) intField(doc document.Document, field string) int64 {
	n, ok := document.Int64(doc[field])
	s.Require().True(ok, "field %q is not numeric: %#v", field, doc[field])
	return n
}

// timeField returns doc[field] as a time.Time.
func (s *Suite) timeField(doc document.Document, field string) time.Time {
	t, ok := doc[field].(time.Time)
	s.Require().True(ok, "field %q is not a time: %#v", field, doc[field])
	return t
}

// subdoc coerces a nested document value, which backends variously
// decode as document.Document or a plain map.
func (s *Suite) subdoc(v interface{}) document.Document {
	switch m := v.(type) {
	case document.Document:
		return m
	case map[string]interface{}:
		return document.Document(m)
	}
	s.Require().FailNow(fmt.Sprintf("not a document: %#v", v))
	return nil
}
