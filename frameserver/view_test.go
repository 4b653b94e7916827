// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package frameserver

import (
	"testing"

	"github.com/diffeo/go-framestore/document"
	"github.com/diffeo/go-framestore/framedata"
	"github.com/stretchr/testify/assert"
)

func TestDecodeCond(t *testing.T) {
	tests := []struct {
		name   string
		in     interface{}
		expect document.Cond
		fail   bool
	}{
		{"literal string", "dog", document.Eq("dog"), false},
		{"literal nil", nil, document.Eq(nil), false},
		{"literal map", map[string]interface{}{"label": "dog"},
			document.Eq(map[string]interface{}{"label": "dog"}), false},
		{"eq", map[string]interface{}{"eq": "dog"}, document.Eq("dog"), false},
		{"ne", map[string]interface{}{"ne": nil}, document.Ne(nil), false},
		{"in", map[string]interface{}{"in": []interface{}{"cat", "dog"}},
			document.In("cat", "dog"), false},
		{"gt", map[string]interface{}{"gt": 0.5}, document.Gt(0.5), false},
		{"gte", map[string]interface{}{"gte": 0.5}, document.Gte(0.5), false},
		{"lt", map[string]interface{}{"lt": 0.5}, document.Lt(0.5), false},
		{"lte", map[string]interface{}{"lte": 0.5}, document.Lte(0.5), false},
		{"exists", map[string]interface{}{"exists": true}, document.Exists(true), false},
		{"two operators", map[string]interface{}{"gt": 1, "lt": 2}, document.Cond{}, true},
		{"exists null", map[string]interface{}{"exists": nil}, document.Cond{}, true},
	}
	for _, test := range tests {
		cond, err := decodeCond("f", test.in)
		if test.fail {
			assert.Error(t, err, test.name)
		} else if assert.NoError(t, err, test.name) {
			assert.Equal(t, test.expect, cond, test.name)
		}
	}
}

func TestViewSpecFromQuery(t *testing.T) {
	q := framedata.FrameQuery{
		Match: map[string]interface{}{
			"label":   "dog",
			"quality": map[string]interface{}{"gt": 0.5},
		},
		Select: []string{"label", "detections"},
		Filters: map[string]map[string]interface{}{
			"detections": {
				"confidence": map[string]interface{}{"gte": 0.9},
			},
		},
	}
	spec, err := viewSpecFromQuery(q)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, document.Filter{
		"label":   document.Eq("dog"),
		"quality": document.Gt(0.5),
	}, spec.Match)
	assert.Equal(t, []string{"label", "detections"}, spec.Select)
	assert.Equal(t, map[string]document.Filter{
		"detections": {"confidence": document.Gte(0.9)},
	}, spec.Filters)
}

func TestViewSpecBadQuery(t *testing.T) {
	_, err := viewSpecFromQuery(framedata.FrameQuery{
		Match: map[string]interface{}{
			"quality": map[string]interface{}{"gt": 1, "lt": 2},
		},
	})
	assert.Error(t, err)
}
