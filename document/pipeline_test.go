// Copyright 2017-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package document

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func frameDocs() []Document {
	return []Document{
		{
			"_id": ID("f3"), "_sample_id": ID("s1"), "frame_number": 3,
			"weather": "rain",
		},
		{
			"_id": ID("f1"), "_sample_id": ID("s1"), "frame_number": 1,
			"weather": "sun",
			"detections": Document{
				"_cls": "Detections",
				"detections": []interface{}{
					Document{"_id": ID("d1"), "label": "cat", "confidence": 0.9},
					Document{"_id": ID("d2"), "label": "dog", "confidence": 0.2},
				},
			},
		},
		{
			"_id": ID("g1"), "_sample_id": ID("s2"), "frame_number": 1,
			"weather": "sun",
		},
	}
}

func TestPipelineMatchSort(t *testing.T) {
	pipe := Pipeline{
		Match(Filter{"_sample_id": Eq(ID("s1"))}),
		SortBy(Sort{Field: "frame_number"}),
	}
	out := pipe.Apply(frameDocs())
	require.Len(t, out, 2)
	assert.Equal(t, 1, out[0]["frame_number"])
	assert.Equal(t, 3, out[1]["frame_number"])
}

func TestPipelineSortDescending(t *testing.T) {
	pipe := Pipeline{SortBy(Sort{Field: "frame_number", Desc: true})}
	out := pipe.Apply(frameDocs())
	require.Len(t, out, 3)
	assert.Equal(t, 3, out[0]["frame_number"])
}

func TestPipelineSelect(t *testing.T) {
	pipe := Pipeline{
		Match(Filter{"_id": Eq(ID("f1"))}),
		SelectFields("weather", "_sample_id", "frame_number"),
	}
	out := pipe.Apply(frameDocs())
	require.Len(t, out, 1)
	assert.Equal(t, Document{
		"_id":          ID("f1"),
		"_sample_id":   ID("s1"),
		"frame_number": 1,
		"weather":      "sun",
	}, out[0])
}

func TestPipelineExclude(t *testing.T) {
	pipe := Pipeline{
		Match(Filter{"_id": Eq(ID("f1"))}),
		ExcludeFields("detections"),
	}
	out := pipe.Apply(frameDocs())
	require.Len(t, out, 1)
	assert.NotContains(t, out[0], "detections")
	assert.Contains(t, out[0], "weather")
}

func TestPipelineFilterArray(t *testing.T) {
	docs := frameDocs()
	pipe := Pipeline{
		Match(Filter{"_id": Eq(ID("f1"))}),
		FilterArray("detections.detections", Filter{"confidence": Gt(0.5)}),
	}
	out := pipe.Apply(docs)
	require.Len(t, out, 1)
	elems := out[0]["detections"].(Document)["detections"].([]interface{})
	require.Len(t, elems, 1)
	assert.Equal(t, "cat", elems[0].(Document)["label"])

	// The source documents are untouched.
	orig := docs[1]["detections"].(Document)["detections"].([]interface{})
	assert.Len(t, orig, 2)
}

func TestPipelineCollect(t *testing.T) {
	pipe := Pipeline{
		Match(Filter{"_sample_id": Eq(ID("s1"))}),
		SortBy(Sort{Field: "frame_number"}),
		Collect("frame_number"),
	}
	out := pipe.Apply(frameDocs())
	require.Len(t, out, 1)
	assert.Equal(t, []interface{}{1, 3}, out[0]["values"])
}

func TestPipelineCollectEmpty(t *testing.T) {
	pipe := Pipeline{
		Match(Filter{"_sample_id": Eq(ID("s9"))}),
		Collect("frame_number"),
	}
	out := pipe.Apply(frameDocs())
	assert.Empty(t, out)
}
