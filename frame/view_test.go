// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package frame_test

import (
	"github.com/diffeo/go-framestore/document"
	"github.com/diffeo/go-framestore/frame"
)

// seedDetections inserts a frame with a filterable label list plus a
// couple of scalar fields.
func (s *Suite) seedDetections(src *testSource, n int) {
	s.seed(src, n, document.Document{
		"detections": []interface{}{
			document.Document{"_id": document.ID("e1"), "label": "cat", "confidence": 0.9},
			document.Document{"_id": document.ID("e2"), "label": "dog", "confidence": 0.4},
		},
		"verified": false,
		"temp":     21.5,
	})
}

func (s *Suite) TestViewSelectsFields() {
	src := s.source()
	s.seedDetections(src, 1)
	frames := frame.NewView(src, frame.ViewSpec{Select: []string{"verified"}})

	rec, err := frames.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal([]string{"verified"}, rec.Fields())
	s.Equal(false, s.field(rec, "verified"))

	_, err = rec.Get("temp")
	s.Equal(frame.FieldAccessError{Field: "temp"}, err)
	err = rec.Set("temp", 0)
	s.Equal(frame.FieldAccessError{Field: "temp"}, err)

	// The hidden fields are physically absent, not just masked, so
	// a flush cannot leak them back.
	data := rec.Data()
	s.NotContains(data, "temp")
	s.NotContains(data, "detections")
	s.Contains(data, "frame_number")
	s.Contains(data, "_sample_id")
}

func (s *Suite) TestViewExcludesFields() {
	src := s.source()
	s.seedDetections(src, 1)
	frames := frame.NewView(src, frame.ViewSpec{Exclude: []string{"temp"}})

	rec, err := frames.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal([]string{"detections", "verified"}, rec.Fields())
	_, err = rec.Get("temp")
	s.Equal(frame.FieldAccessError{Field: "temp"}, err)
	s.NotContains(rec.Data(), "temp")
}

func (s *Suite) TestViewFiltersElements() {
	src := s.source()
	s.seedDetections(src, 1)
	frames := frame.NewView(src, frame.ViewSpec{
		Filters: map[string]document.Filter{
			"detections": {"confidence": document.Gt(0.5)},
		},
	})

	rec, err := frames.Get(s.ctx, 1)
	s.Require().NoError(err)
	dets, ok := s.field(rec, "detections").([]interface{})
	s.Require().True(ok)
	s.Require().Len(dets, 1)
	elem, ok := dets[0].(document.Document)
	s.Require().True(ok)
	s.Equal("cat", elem["label"])

	// Element filters do not drop whole frames.
	nums, err := frames.Numbers(s.ctx)
	s.Require().NoError(err)
	s.Equal([]int{1}, nums)
}

func (s *Suite) TestViewMatchFiltersFrames() {
	src := s.source()
	s.seed(src, 1, document.Document{"quality": 0.9})
	s.seed(src, 2, document.Document{"quality": 0.1})
	frames := frame.NewView(src, frame.ViewSpec{
		Match: document.Filter{"quality": document.Gt(0.5)},
	})

	nums, err := frames.Numbers(s.ctx)
	s.Require().NoError(err)
	s.Equal([]int{1}, nums)
	n, err := frames.Len(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	has, err := frames.Has(s.ctx, 2)
	s.Require().NoError(err)
	s.False(has)

	// A frame outside the view synthesizes fresh, like a missing
	// one.
	rec, err := frames.Get(s.ctx, 2)
	s.Require().NoError(err)
	s.False(rec.Backed())
	s.Empty(rec.Fields())

	var got []int
	it := frames.Iter()
	for it.Next(s.ctx) {
		got = append(got, it.Number())
	}
	s.Require().NoError(it.Err())
	s.Require().NoError(it.Close(s.ctx))
	// 2 is staged now, 1 comes off the store scan.
	s.Equal([]int{1, 2}, got)
}

func (s *Suite) TestViewSavePositionalAndMerge() {
	src := s.source()
	s.seedDetections(src, 1)
	frames := frame.NewView(src, frame.ViewSpec{
		Filters: map[string]document.Filter{
			"detections": {"confidence": document.Gt(0.5)},
		},
	})

	rec, err := frames.Get(s.ctx, 1)
	s.Require().NoError(err)
	dets := s.field(rec, "detections").([]interface{})
	s.Require().Len(dets, 1)
	dets[0].(document.Document)["label"] = "feline"
	s.setField(rec, "verified", true)

	s.Require().NoError(frames.Save(s.ctx))

	// The store still has both elements: the visible one was
	// updated in place, the hidden one survived, and the scalar
	// merge did not clobber the array.
	doc := s.stored(src, 1)
	stored, ok := doc["detections"].([]interface{})
	s.Require().True(ok)
	s.Require().Len(stored, 2)
	byID := make(map[document.ID]document.Document, len(stored))
	for _, e := range stored {
		elem := e.(document.Document)
		id, _ := document.IDOf(elem["_id"])
		byID[id] = elem
	}
	s.Equal("feline", byID["e1"]["label"])
	s.Equal("dog", byID["e2"]["label"])
	s.Equal(true, doc["verified"])
	s.Equal(21.5, doc["temp"])

	// The flush cleared the staged state.
	again, err := frames.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.NotSame(rec, again)
}

func (s *Suite) TestViewSaveUpsertsMissingFrame() {
	src := s.source()
	s.seedDetections(src, 1)
	frames := frame.NewView(src, frame.ViewSpec{
		Filters: map[string]document.Filter{
			"detections": {"confidence": document.Gt(0.5)},
		},
	})

	rec, err := frames.Get(s.ctx, 5)
	s.Require().NoError(err)
	s.False(rec.Backed())
	s.setField(rec, "verified", true)

	s.Require().NoError(frames.Save(s.ctx))

	doc := s.stored(src, 5)
	s.Equal(true, doc["verified"])
	n, ok := document.Int64(doc["frame_number"])
	s.Require().True(ok)
	s.Equal(int64(5), n)
}

func (s *Suite) TestViewAllFieldsSavesWholesale() {
	src := s.source()
	s.seed(src, 1, document.Document{"label": "old"})
	frames := frame.NewView(src, frame.ViewSpec{})

	rec, err := frames.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.setField(rec, "label", "new")
	fresh, err := frames.Get(s.ctx, 2)
	s.Require().NoError(err)
	s.setField(fresh, "label", "added")

	s.Require().NoError(frames.Save(s.ctx))

	s.Equal("new", s.stored(src, 1)["label"])
	s.Equal("added", s.stored(src, 2)["label"])
	s.Equal(2, s.storedCount(src))

	// An unrestricted view still inserts like the plain cache, so
	// the fresh record learned its id.
	_, ok := fresh.ID()
	s.True(ok)
}

func (s *Suite) TestViewSaveSkipsSiblingState() {
	src := s.source()
	s.seed(src, 1, document.Document{"label": "old"})

	raw := frame.New(src)
	staged, err := raw.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.setField(staged, "label", "from-raw")

	view := frame.NewView(src, frame.ViewSpec{Exclude: []string{"nothing"}})
	rec, err := view.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.setField(rec, "verified", true)

	// Saving the view writes only its own staged records; the raw
	// cache's edit stays pending.
	s.Require().NoError(view.Save(s.ctx))
	doc := s.stored(src, 1)
	s.Equal("old", doc["label"])
	s.Equal(true, doc["verified"])

	s.Require().NoError(raw.Save(s.ctx))
	s.Equal("from-raw", s.stored(src, 1)["label"])
}

func (s *Suite) TestViewReloadDiscardsPendingOnly() {
	src := s.source()
	s.seed(src, 1, document.Document{"label": "db"})
	frames := frame.NewView(src, frame.ViewSpec{Exclude: []string{"nothing"}})

	rec, err := frames.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.setField(rec, "label", "local")
	s.Require().NoError(frames.Reload(s.ctx, false))

	// View records are not re-synchronized, only forgotten.
	s.Equal("local", s.field(rec, "label"))
	again, err := frames.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.NotSame(rec, again)
	s.Equal("db", s.field(again, "label"))
}

func (s *Suite) TestViewRecordCopyIsPlain() {
	src := s.source()
	s.seedDetections(src, 1)
	frames := frame.NewView(src, frame.ViewSpec{Select: []string{"verified"}})

	rec, err := frames.Get(s.ctx, 1)
	s.Require().NoError(err)
	cp := rec.Copy()
	s.False(cp.Backed())
	_, ok := cp.ID()
	s.False(ok)
	s.Equal(false, s.field(cp, "verified"))

	// The copy is a plain frame, free of the view's restriction.
	s.Require().NoError(cp.Set("anything", 1))
}
