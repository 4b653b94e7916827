// Copyright 2017-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package document

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestApplyUpdateSet(t *testing.T) {
	doc := Document{"a": 1}
	err := ApplyUpdate(doc, UpdateOne{
		Set: Document{"a": 2, "b.c": "deep"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, doc["a"])
	assert.Equal(t, "deep", doc["b"].(Document)["c"])
}

func TestApplyUpdateUnset(t *testing.T) {
	doc := Document{"a": 1, "b": Document{"c": 2, "d": 3}}
	err := ApplyUpdate(doc, UpdateOne{Unset: []string{"a", "b.c"}})
	require.NoError(t, err)
	assert.NotContains(t, doc, "a")
	assert.Equal(t, Document{"d": 3}, doc["b"])
}

func TestApplyUpdatePositional(t *testing.T) {
	doc := sampleDoc()
	err := ApplyUpdate(doc, UpdateOne{
		Filter: Filter{
			"_sample_id":                Eq(ID("s1")),
			"frame_number":              Eq(3),
			"detections.detections._id": Eq(ID("d2")),
		},
		Set: Document{
			"detections.detections.$": Document{
				"_id": ID("d2"), "label": "wolf", "confidence": 0.95,
			},
		},
	})
	require.NoError(t, err)

	elems := doc["detections"].(Document)["detections"].([]interface{})
	require.Len(t, elems, 2)
	assert.Equal(t, "cat", elems[0].(Document)["label"])
	assert.Equal(t, "wolf", elems[1].(Document)["label"])
}

func TestApplyUpdatePositionalMissingElement(t *testing.T) {
	doc := sampleDoc()
	err := ApplyUpdate(doc, UpdateOne{
		Filter: Filter{"detections.detections._id": Eq(ID("d9"))},
		Set: Document{
			"detections.detections.$": Document{"_id": ID("d9")},
		},
	})
	require.NoError(t, err)
	elems := doc["detections"].(Document)["detections"].([]interface{})
	assert.Len(t, elems, 2)
}

func TestApplyUpdatePositionalRequiresIDFilter(t *testing.T) {
	doc := sampleDoc()
	err := ApplyUpdate(doc, UpdateOne{
		Set: Document{"detections.detections.$": Document{}},
	})
	assert.Error(t, err)
}

func TestUpsertFromFilter(t *testing.T) {
	doc := UpsertFromFilter(Filter{
		"_sample_id":   Eq(ID("s1")),
		"frame_number": Eq(7),
		"quality":      Gt(0.5),
	})
	assert.Equal(t, Document{
		"_sample_id":   ID("s1"),
		"frame_number": 7,
	}, doc)
}
