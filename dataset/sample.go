// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package dataset

import (
	"context"

	"github.com/diffeo/go-framestore/document"
	"github.com/diffeo/go-framestore/frame"
)

// Dataset is one named dataset: a sample collection, a frame
// collection, and the declared frame field schema.
type Dataset struct {
	name    string
	samples document.Collection
	frames  document.Collection
	schema  *fieldSchema
}

// Name returns the dataset's name.
func (ds *Dataset) Name() string { return ds.name }

// FrameSchema returns the dataset's frame field schema.
func (ds *Dataset) FrameSchema() frame.Schema { return ds.schema }

// FrameField describes one declared frame field.
type FrameField struct {
	Name string
	Kind string
}

// FrameFields returns the declared frame fields with their recorded
// kinds, in declaration order.
func (ds *Dataset) FrameFields() []FrameField {
	names := ds.schema.Names()
	fields := make([]FrameField, len(names))
	for i, name := range names {
		fields[i] = FrameField{Name: name, Kind: ds.schema.Kind(name)}
	}
	return fields
}

// FrameCollection returns the collection the dataset's frames live in.
func (ds *Dataset) FrameCollection() document.Collection { return ds.frames }

// AddSample persists a transient sample into the dataset, then saves
// any frames staged on it while it was transient.
func (ds *Dataset) AddSample(ctx context.Context, s *Sample) error {
	if s.ds != nil {
		return ErrSampleBound
	}
	if s.filepath == "" {
		return ErrNoFilepath
	}
	ids, err := ds.samples.InsertMany(ctx, []document.Document{
		{"filepath": s.filepath},
	})
	if err != nil {
		return err
	}
	s.id = ids[0]
	s.ds = ds
	if s.frames != nil {
		return s.frames.Save(ctx)
	}
	return nil
}

// Sample loads one sample by id, or returns ErrNoSample.
func (ds *Dataset) Sample(ctx context.Context, id document.ID) (*Sample, error) {
	doc, err := ds.samples.FindOne(ctx, document.Filter{"_id": document.Eq(id)})
	if err == document.ErrNotFound {
		return nil, ErrNoSample
	}
	if err != nil {
		return nil, err
	}
	return ds.sampleFromDoc(doc), nil
}

// Samples returns the dataset's samples ordered by filepath.
func (ds *Dataset) Samples(ctx context.Context) ([]*Sample, error) {
	cur, err := ds.samples.Find(ctx, document.Filter{}, document.Sort{Field: "filepath"})
	if err != nil {
		return nil, err
	}
	var out []*Sample
	for cur.Next(ctx) {
		var doc document.Document
		if err := cur.Decode(&doc); err != nil {
			cur.Close(ctx)
			return nil, err
		}
		out = append(out, ds.sampleFromDoc(doc))
	}
	if err := cur.Err(); err != nil {
		cur.Close(ctx)
		return nil, err
	}
	if err := cur.Close(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSample removes a sample and all of its frames.
func (ds *Dataset) DeleteSample(ctx context.Context, id document.ID) error {
	if _, err := ds.frames.DeleteMany(ctx, document.Filter{"_sample_id": document.Eq(id)}); err != nil {
		return err
	}
	n, err := ds.samples.DeleteMany(ctx, document.Filter{"_id": document.Eq(id)})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoSample
	}
	return nil
}

// SampleCount returns how many samples the dataset holds.
func (ds *Dataset) SampleCount(ctx context.Context) (int, error) {
	values, err := collectValues(ctx, ds.samples, nil, "_id")
	if err != nil {
		return 0, err
	}
	return len(values), nil
}

// FrameCount returns how many frame documents the dataset holds,
// across all samples.
func (ds *Dataset) FrameCount(ctx context.Context) (int, error) {
	values, err := collectValues(ctx, ds.frames, nil, "_id")
	if err != nil {
		return 0, err
	}
	return len(values), nil
}

func (ds *Dataset) sampleFromDoc(doc document.Document) *Sample {
	s := &Sample{ds: ds}
	s.id, _ = document.IDOf(doc["_id"])
	s.filepath, _ = doc["filepath"].(string)
	return s
}

// Sample is one media sample.  It implements frame.Source, so frame
// caches are built directly over it.
type Sample struct {
	id       document.ID
	filepath string
	ds       *Dataset

	frames *frame.Frames
}

// NewSample creates a transient sample.  Its frame cache works purely
// in memory until the sample is added to a dataset.
func NewSample(filepath string) *Sample {
	return &Sample{filepath: filepath}
}

// Filepath returns the sample's media path.
func (s *Sample) Filepath() string { return s.filepath }

// ID returns the sample's store id; the second return is false while
// the sample is transient.
func (s *Sample) ID() (document.ID, bool) {
	return s.SampleID()
}

// SampleID implements frame.Source.
func (s *Sample) SampleID() (document.ID, bool) {
	return s.id, s.ds != nil
}

// Collection implements frame.Source.  It is nil while the sample is
// transient.
func (s *Sample) Collection() document.Collection {
	if s.ds == nil {
		return nil
	}
	return s.ds.frames
}

// Schema implements frame.Source.  It is nil while the sample is
// transient.
func (s *Sample) Schema() frame.Schema {
	if s.ds == nil {
		return nil
	}
	return s.ds.schema
}

// Frames returns the sample's frame cache, creating it on first use.
// The same cache comes back on every call, so staged edits accumulate
// until Save.
func (s *Sample) Frames() *frame.Frames {
	if s.frames == nil {
		s.frames = frame.New(s)
	}
	return s.frames
}

// FramesView builds a fresh filtered cache over the sample's frames.
func (s *Sample) FramesView(spec frame.ViewSpec) *frame.Frames {
	return frame.NewView(s, spec)
}
