// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package documenttest

import (
	"context"

	"github.com/diffeo/go-framestore/document"
)

// TestFindOneByID inserts documents and fetches one back by its
// assigned id.
func (s *Suite) TestFindOneByID() {
	ctx := context.Background()
	coll := s.collection()
	ids := s.insert(coll,
		document.Document{"name": "first", "n": 1},
		document.Document{"name": "second", "n": 2},
	)

	doc, err := coll.FindOne(ctx, document.Filter{"_id": document.Eq(ids[1])})
	s.Require().NoError(err)
	s.Equal("second", doc["name"])
	s.EqualValues(2, s.intField(doc, "n"))
	id, ok := document.IDOf(doc["_id"])
	s.True(ok)
	s.Equal(ids[1], id)

	_, err = coll.FindOne(ctx, document.Filter{"name": document.Eq("third")})
	s.Equal(document.ErrNotFound, err)
}

// TestFindFilters exercises every filter operator against a small
// fixed collection.
func (s *Suite) TestFindFilters() {
	coll := s.collection()
	s.insert(coll,
		document.Document{"name": "alpha", "n": 1, "tag": "x"},
		document.Document{"name": "beta", "n": 2, "tag": "y"},
		document.Document{"name": "gamma", "n": 3},
		document.Document{"name": "delta", "n": 4, "tag": "y"},
	)

	s.ElementsMatch([]string{"beta", "delta"},
		s.names(s.find(coll, document.Filter{"tag": document.Eq("y")})))

	// A document without the field is still "not equal".
	s.ElementsMatch([]string{"alpha", "gamma"},
		s.names(s.find(coll, document.Filter{"tag": document.Ne("y")})))

	s.ElementsMatch([]string{"alpha", "gamma"},
		s.names(s.find(coll, document.Filter{"n": document.In(1, 3)})))

	s.ElementsMatch([]string{"gamma", "delta"},
		s.names(s.find(coll, document.Filter{"n": document.Gt(2)})))

	s.ElementsMatch([]string{"beta", "gamma", "delta"},
		s.names(s.find(coll, document.Filter{"n": document.Gte(2)})))

	s.ElementsMatch([]string{"alpha"},
		s.names(s.find(coll, document.Filter{"n": document.Lt(2)})))

	s.ElementsMatch([]string{"alpha", "beta"},
		s.names(s.find(coll, document.Filter{"n": document.Lte(2)})))

	s.ElementsMatch([]string{"alpha", "beta", "delta"},
		s.names(s.find(coll, document.Filter{"tag": document.Exists(true)})))

	s.ElementsMatch([]string{"gamma"},
		s.names(s.find(coll, document.Filter{"tag": document.Exists(false)})))

	// Every condition in a filter has to hold.
	s.ElementsMatch([]string{"delta"},
		s.names(s.find(coll, document.Filter{
			"tag": document.Eq("y"),
			"n":   document.Gt(2),
		})))

	// An empty filter matches everything.
	s.Len(s.find(coll, nil), 4)
}

// TestFindSorted checks ordered scans, including descending order and
// secondary sort keys.
func (s *Suite) TestFindSorted() {
	coll := s.collection()
	s.insert(coll,
		document.Document{"name": "c", "n": 3},
		document.Document{"name": "a", "n": 1},
		document.Document{"name": "b", "n": 2},
	)

	docs := s.find(coll, nil, document.Sort{Field: "n"})
	s.Equal([]string{"a", "b", "c"}, s.names(docs))

	docs = s.find(coll, nil, document.Sort{Field: "n", Desc: true})
	s.Equal([]string{"c", "b", "a"}, s.names(docs))

	// Later keys break ties in earlier ones.
	s.insert(coll, document.Document{"name": "d", "n": 2})
	docs = s.find(coll, nil,
		document.Sort{Field: "n"},
		document.Sort{Field: "name", Desc: true})
	s.Equal([]string{"a", "d", "b", "c"}, s.names(docs))
}

// TestAggregate runs pipelines through each stage type.
func (s *Suite) TestAggregate() {
	coll := s.collection()
	s.insert(coll,
		document.Document{"name": "a", "n": 1, "elems": []interface{}{
			map[string]interface{}{"k": "keep", "v": 1},
			map[string]interface{}{"k": "drop", "v": 2},
		}},
		document.Document{"name": "b", "n": 2, "elems": []interface{}{
			map[string]interface{}{"k": "keep", "v": 3},
		}},
		document.Document{"name": "c", "n": 3, "elems": []interface{}{}},
	)

	// Match, sort, and project.
	docs := s.aggregate(coll, document.Pipeline{
		document.Match(document.Filter{"n": document.Gte(2)}),
		document.SortBy(document.Sort{Field: "n", Desc: true}),
		document.SelectFields("name"),
	})
	s.Require().Len(docs, 2)
	s.Equal([]string{"c", "b"}, s.names(docs))
	// Projection keeps the id and drops everything unnamed.
	s.Contains(docs[0], "_id")
	s.NotContains(docs[0], "n")
	s.NotContains(docs[0], "elems")

	// Exclusion drops only the named fields.
	docs = s.aggregate(coll, document.Pipeline{
		document.Match(document.Filter{"name": document.Eq("a")}),
		document.ExcludeFields("elems", "n"),
	})
	s.Require().Len(docs, 1)
	s.Equal("a", docs[0]["name"])
	s.NotContains(docs[0], "elems")
	s.NotContains(docs[0], "n")

	// Array element filtering narrows the array in place.
	docs = s.aggregate(coll, document.Pipeline{
		document.Match(document.Filter{"name": document.Eq("a")}),
		document.FilterArray("elems", document.Filter{"k": document.Eq("keep")}),
	})
	s.Require().Len(docs, 1)
	elems, ok := docs[0]["elems"].([]interface{})
	s.Require().True(ok, "elems is %#v", docs[0]["elems"])
	s.Require().Len(elems, 1)
	s.Equal("keep", s.subdoc(elems[0])["k"])
	s.Equal("a", docs[0]["name"])

	// Collect gathers one field across the (sorted) stream.
	docs = s.aggregate(coll, document.Pipeline{
		document.Match(document.Filter{"n": document.Lte(2)}),
		document.SortBy(document.Sort{Field: "n"}),
		document.Collect("name"),
	})
	s.Require().Len(docs, 1)
	values, ok := docs[0]["values"].([]interface{})
	s.Require().True(ok, "values is %#v", docs[0]["values"])
	s.Equal([]interface{}{"a", "b"}, values)

	// Collecting over an empty stream yields no output documents.
	docs = s.aggregate(coll, document.Pipeline{
		document.Match(document.Filter{"n": document.Gt(100)}),
		document.Collect("name"),
	})
	s.Empty(docs)
}
