// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package frameclient_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/diffeo/go-framestore/dataset"
	"github.com/diffeo/go-framestore/document"
	"github.com/diffeo/go-framestore/frame"
	"github.com/diffeo/go-framestore/frameclient"
	"github.com/diffeo/go-framestore/framedata"
	"github.com/diffeo/go-framestore/frameserver"
	"github.com/diffeo/go-framestore/memstore"
	"github.com/stretchr/testify/assert"
)

// newTestClient sets up an object stack where the REST client code
// talks to the REST server code, which points at an in-memory backend.
func newTestClient(t *testing.T, mediaType string) *frameclient.Client {
	root := dataset.New(memstore.New())
	server := httptest.NewServer(frameserver.NewRouter(root))
	t.Cleanup(server.Close)
	c, err := frameclient.NewWithMediaType(context.Background(), server.URL, mediaType)
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	return c
}

func TestEmptyURL(t *testing.T) {
	_, err := frameclient.New(context.Background(), "")
	if err == nil {
		t.Fatal("Expected error when given empty URL.")
	}
}

func TestDatasetLifecycle(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, framedata.V1JSONMediaType)

	names, err := c.Datasets(ctx)
	if assert.NoError(t, err) {
		assert.Empty(t, names)
	}

	ds, err := c.CreateDataset(ctx, "quickstart")
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, "quickstart", ds.Name())
	assert.Zero(t, ds.SampleCount())
	assert.Zero(t, ds.FrameCount())

	_, err = c.CreateDataset(ctx, "quickstart")
	assert.Equal(t, dataset.ErrDatasetExists, err)

	_, err = c.CreateDataset(ctx, "")
	assert.Equal(t, dataset.ErrNoName, err)

	names, err = c.Datasets(ctx)
	if assert.NoError(t, err) {
		assert.Equal(t, []string{"quickstart"}, names)
	}

	again, err := c.Dataset(ctx, "quickstart")
	if assert.NoError(t, err) {
		assert.Equal(t, "quickstart", again.Name())
	}

	_, err = c.Dataset(ctx, "missing")
	assert.Equal(t, dataset.ErrNoDataset, err)

	err = c.DeleteDataset(ctx, "quickstart")
	assert.NoError(t, err)

	_, err = c.Dataset(ctx, "quickstart")
	assert.Equal(t, dataset.ErrNoDataset, err)
}

func TestSampleLifecycle(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, framedata.V1JSONMediaType)

	ds, err := c.CreateDataset(ctx, "quickstart")
	if !assert.NoError(t, err) {
		return
	}

	_, err = ds.AddSample(ctx, "")
	assert.Equal(t, dataset.ErrNoFilepath, err)

	s, err := ds.AddSample(ctx, "data/clip-001.mp4")
	if !assert.NoError(t, err) {
		return
	}
	assert.NotEmpty(t, s.ID())
	assert.Equal(t, "data/clip-001.mp4", s.Filepath())

	again, err := ds.Sample(ctx, s.ID())
	if assert.NoError(t, err) {
		assert.Equal(t, s.ID(), again.ID())
		assert.Equal(t, s.Filepath(), again.Filepath())
	}

	_, err = ds.Sample(ctx, "no-such-sample")
	assert.Equal(t, dataset.ErrNoSample, err)

	samples, err := ds.Samples(ctx)
	if assert.NoError(t, err) && assert.Len(t, samples, 1) {
		assert.Equal(t, s.ID(), samples[0].ID())
	}

	if assert.NoError(t, ds.Refresh(ctx)) {
		assert.Equal(t, 1, ds.SampleCount())
	}

	err = s.Delete(ctx)
	assert.NoError(t, err)

	samples, err = ds.Samples(ctx)
	if assert.NoError(t, err) {
		assert.Empty(t, samples)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, framedata.V1JSONMediaType)

	ds, err := c.CreateDataset(ctx, "quickstart")
	if !assert.NoError(t, err) {
		return
	}
	s, err := ds.AddSample(ctx, "data/clip-001.mp4")
	if !assert.NoError(t, err) {
		return
	}

	frames, err := s.Frames(ctx)
	if assert.NoError(t, err) {
		assert.Empty(t, frames)
	}

	created, err := s.SetFrame(ctx, 1, framedata.DataDict{"label": "dog", "quality": 0.9})
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, 1, created.Number)
	assert.Equal(t, "dog", created.Data["label"])

	_, err = s.SetFrame(ctx, 3, framedata.DataDict{"label": "cat", "quality": 0.4})
	if !assert.NoError(t, err) {
		return
	}

	one, err := s.Frame(ctx, 1)
	if assert.NoError(t, err) {
		assert.Equal(t, 1, one.Number)
		assert.Equal(t, "dog", one.Data["label"])
		assert.Equal(t, 0.9, one.Data["quality"])
	}

	_, err = s.Frame(ctx, 2)
	assert.EqualError(t, err, "no frame 2")

	_, err = s.Frame(ctx, 0)
	assert.Equal(t, frame.InvalidNumberError{Number: 0}, err)

	frames, err = s.Frames(ctx)
	if assert.NoError(t, err) && assert.Len(t, frames, 2) {
		assert.Equal(t, 1, frames[0].Number)
		assert.Equal(t, 3, frames[1].Number)
	}

	updated, err := s.UpdateFrame(ctx, 1, framedata.DataDict{"quality": 0.5})
	if assert.NoError(t, err) {
		assert.Equal(t, "dog", updated.Data["label"])
		assert.Equal(t, 0.5, updated.Data["quality"])
	}

	err = s.DeleteFrame(ctx, 3)
	assert.NoError(t, err)
	err = s.DeleteFrame(ctx, 3)
	assert.EqualError(t, err, "no frame 3")

	err = s.SaveFrames(ctx, []framedata.Frame{
		{Number: 2, Data: framedata.DataDict{"label": "bird"}},
		{Number: 4, Data: framedata.DataDict{"label": "fish"}},
	})
	assert.NoError(t, err)

	frames, err = s.Frames(ctx)
	if assert.NoError(t, err) && assert.Len(t, frames, 3) {
		assert.Equal(t, 1, frames[0].Number)
		assert.Equal(t, 2, frames[1].Number)
		assert.Equal(t, 4, frames[2].Number)
	}

	if assert.NoError(t, ds.Refresh(ctx)) {
		assert.Equal(t, 3, ds.FrameCount())
		fields := ds.FrameFields()
		names := make([]string, len(fields))
		kinds := make(map[string]string)
		for i, f := range fields {
			names[i] = f.Name
			kinds[f.Name] = f.Kind
		}
		assert.Equal(t, []string{"label", "quality"}, names)
		assert.Equal(t, "string", kinds["label"])
		assert.Equal(t, "float", kinds["quality"])
	}

	err = s.ClearFrames(ctx)
	assert.NoError(t, err)
	frames, err = s.Frames(ctx)
	if assert.NoError(t, err) {
		assert.Empty(t, frames)
	}
}

func TestFrameQuery(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, framedata.V1JSONMediaType)

	ds, err := c.CreateDataset(ctx, "quickstart")
	if !assert.NoError(t, err) {
		return
	}
	s, err := ds.AddSample(ctx, "data/clip-001.mp4")
	if !assert.NoError(t, err) {
		return
	}
	err = s.SaveFrames(ctx, []framedata.Frame{
		{Number: 1, Data: framedata.DataDict{
			"label":   "dog",
			"quality": 0.9,
			"detections": []interface{}{
				map[string]interface{}{"kind": "dog", "confidence": 0.95},
				map[string]interface{}{"kind": "cat", "confidence": 0.40},
			},
		}},
		{Number: 2, Data: framedata.DataDict{"label": "cat", "quality": 0.3}},
		{Number: 3, Data: framedata.DataDict{"label": "dog", "quality": 0.2}},
	})
	if !assert.NoError(t, err) {
		return
	}

	// Literal equality match.
	frames, err := s.Query(ctx, framedata.FrameQuery{
		Match: map[string]interface{}{"label": "dog"},
	})
	if assert.NoError(t, err) && assert.Len(t, frames, 2) {
		assert.Equal(t, 1, frames[0].Number)
		assert.Equal(t, 3, frames[1].Number)
	}

	// Comparison operator.
	frames, err = s.Query(ctx, framedata.FrameQuery{
		Match: map[string]interface{}{"quality": map[string]interface{}{"gt": 0.25}},
	})
	if assert.NoError(t, err) && assert.Len(t, frames, 2) {
		assert.Equal(t, 1, frames[0].Number)
		assert.Equal(t, 2, frames[1].Number)
	}

	// Field selection.
	frames, err = s.Query(ctx, framedata.FrameQuery{
		Match:  map[string]interface{}{"label": "dog"},
		Select: []string{"label"},
	})
	if assert.NoError(t, err) && assert.Len(t, frames, 2) {
		assert.Equal(t, "dog", frames[0].Data["label"])
		assert.NotContains(t, frames[0].Data, "quality")
	}

	// Array element filtering.
	frames, err = s.Query(ctx, framedata.FrameQuery{
		Match: map[string]interface{}{"detections": map[string]interface{}{"exists": true}},
		Filters: map[string]map[string]interface{}{
			"detections": {"confidence": map[string]interface{}{"gte": 0.5}},
		},
	})
	if assert.NoError(t, err) && assert.Len(t, frames, 1) {
		dets, ok := frames[0].Data["detections"].([]interface{})
		if assert.True(t, ok) && assert.Len(t, dets, 1) {
			det, _ := dets[0].(map[string]interface{})
			assert.Equal(t, "dog", det["kind"])
		}
	}

	// A view specification built locally runs remotely.
	q, err := frameclient.QueryFromViewSpec(frame.ViewSpec{
		Match: document.Filter{"label": document.Eq("dog")},
	})
	if assert.NoError(t, err) {
		frames, err = s.Query(ctx, q)
		if assert.NoError(t, err) {
			assert.Len(t, frames, 2)
		}
	}

	// Malformed condition.
	_, err = s.Query(ctx, framedata.FrameQuery{
		Match: map[string]interface{}{"quality": map[string]interface{}{"gt": 1, "lt": 2}},
	})
	assert.Error(t, err)
}

func TestCBORTransport(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, framedata.V1CBORMediaType)

	ds, err := c.CreateDataset(ctx, "quickstart")
	if !assert.NoError(t, err) {
		return
	}
	s, err := ds.AddSample(ctx, "data/clip-001.mp4")
	if !assert.NoError(t, err) {
		return
	}

	when := time.Date(2018, 3, 4, 5, 6, 7, 0, time.UTC)
	_, err = s.SetFrame(ctx, 1, framedata.DataDict{"captured_at": when, "label": "dog"})
	if !assert.NoError(t, err) {
		return
	}

	got, err := s.Frame(ctx, 1)
	if !assert.NoError(t, err) {
		return
	}
	assert.Equal(t, "dog", got.Data["label"])
	ts, ok := got.Data["captured_at"].(time.Time)
	if assert.True(t, ok, "captured_at came back as %T", got.Data["captured_at"]) {
		assert.True(t, ts.Equal(when))
	}

	if assert.NoError(t, ds.Refresh(ctx)) {
		kinds := make(map[string]string)
		for _, f := range ds.FrameFields() {
			kinds[f.Name] = f.Kind
		}
		assert.Equal(t, "datetime", kinds["captured_at"])
	}
}
