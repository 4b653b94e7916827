// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package dataset provides the parent objects frame caches hang off
// of: named datasets persisted in a metadata collection, each owning a
// sample collection and a frame collection in the same document store.
// The frame collection carries a unique (sample, frame number) index,
// created with the dataset.
//
// Samples implement frame.Source.  A sample constructed with NewSample
// is transient; its frame cache stages everything in memory and saves
// nothing.  Adding the sample to a dataset persists it, after which
// the cache's Save writes through to the dataset's frame collection.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
	uuid "github.com/satori/go.uuid"

	"github.com/diffeo/go-framestore/document"
)

// MetaCollection is the name of the collection dataset metadata
// documents live in.
const MetaCollection = "datasets"

// Errors returned by the dataset layer.
var (
	// ErrDatasetExists is returned by Create when the name is taken.
	ErrDatasetExists = errors.New("dataset already exists")

	// ErrNoDataset is returned when a named dataset does not exist.
	ErrNoDataset = errors.New("no such dataset")

	// ErrNoSample is returned when a sample id does not exist.
	ErrNoSample = errors.New("no such sample")

	// ErrNoName is returned by Create for an empty dataset name.
	ErrNoName = errors.New("dataset name must not be empty")

	// ErrSampleBound is returned by AddSample for a sample that
	// already belongs to a dataset.
	ErrSampleBound = errors.New("sample already belongs to a dataset")

	// ErrNoFilepath is returned by AddSample for a sample with an
	// empty filepath.
	ErrNoFilepath = errors.New("sample filepath must not be empty")
)

// fieldDef is one declared frame field in a dataset's metadata.
type fieldDef struct {
	Name string `mapstructure:"name"`
	Kind string `mapstructure:"kind"`
}

// metadata is the decoded shape of a dataset's metadata document.
type metadata struct {
	Name             string     `mapstructure:"name"`
	SampleCollection string     `mapstructure:"sample_collection"`
	FrameCollection  string     `mapstructure:"frame_collection"`
	FrameFields      []fieldDef `mapstructure:"frame_fields"`
}

func decodeMetadata(doc document.Document) (metadata, error) {
	var md metadata
	config := mapstructure.DecoderConfig{Result: &md}
	decoder, err := mapstructure.NewDecoder(&config)
	if err != nil {
		return md, err
	}
	if err := decoder.Decode(doc); err != nil {
		return md, fmt.Errorf("invalid dataset metadata: %w", err)
	}
	return md, nil
}

// Datasets is the root handle over a document store's datasets.
type Datasets struct {
	store document.Store
	meta  document.Collection
}

// New creates a root handle over store.
func New(store document.Store) *Datasets {
	return &Datasets{
		store: store,
		meta:  store.Collection(MetaCollection),
	}
}

// Create makes a new empty dataset.  The name must be unique; Create
// returns ErrDatasetExists if it is taken.
func (d *Datasets) Create(ctx context.Context, name string) (*Dataset, error) {
	if name == "" {
		return nil, ErrNoName
	}
	if err := d.meta.EnsureKeyIndex(ctx, "name"); err != nil {
		return nil, err
	}
	token := uuid.NewV4().String()
	doc := document.Document{
		"name":              name,
		"sample_collection": "samples." + token,
		"frame_collection":  "frames." + token,
		"frame_fields":      []interface{}{},
	}
	if _, err := d.meta.InsertMany(ctx, []document.Document{doc}); err != nil {
		if document.IsDuplicateKey(err) {
			return nil, ErrDatasetExists
		}
		return nil, err
	}
	md, err := decodeMetadata(doc)
	if err != nil {
		return nil, err
	}
	ds := d.open(md)
	if err := ds.frames.EnsureKeyIndex(ctx, "_sample_id", "frame_number"); err != nil {
		return nil, err
	}
	return ds, nil
}

// Load opens an existing dataset by name, or returns ErrNoDataset.
func (d *Datasets) Load(ctx context.Context, name string) (*Dataset, error) {
	doc, err := d.meta.FindOne(ctx, document.Filter{"name": document.Eq(name)})
	if err == document.ErrNotFound {
		return nil, ErrNoDataset
	}
	if err != nil {
		return nil, err
	}
	md, err := decodeMetadata(doc)
	if err != nil {
		return nil, err
	}
	return d.open(md), nil
}

// Delete removes a dataset: its samples, its frames, and its metadata.
func (d *Datasets) Delete(ctx context.Context, name string) error {
	ds, err := d.Load(ctx, name)
	if err != nil {
		return err
	}
	if err := ds.samples.Drop(ctx); err != nil {
		return err
	}
	if err := ds.frames.Drop(ctx); err != nil {
		return err
	}
	_, err = d.meta.DeleteMany(ctx, document.Filter{"name": document.Eq(name)})
	return err
}

// List returns the dataset names, sorted.
func (d *Datasets) List(ctx context.Context) ([]string, error) {
	values, err := collectValues(ctx, d.meta, nil, "name")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			names = append(names, s)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (d *Datasets) open(md metadata) *Dataset {
	ds := &Dataset{
		name:    md.Name,
		samples: d.store.Collection(md.SampleCollection),
		frames:  d.store.Collection(md.FrameCollection),
	}
	ds.schema = newFieldSchema(d.meta, md.Name, md.FrameFields)
	return ds
}

// collectValues runs the existence-scan pipeline: match, then collect
// every value of one field.
func collectValues(ctx context.Context, coll document.Collection, match document.Filter, field string) ([]interface{}, error) {
	pipe := document.Pipeline{}
	if match != nil {
		pipe = append(pipe, document.Match(match))
	}
	pipe = append(pipe, document.Collect(field))
	cur, err := coll.Aggregate(ctx, pipe)
	if err != nil {
		return nil, err
	}
	var values []interface{}
	for cur.Next(ctx) {
		var doc document.Document
		if err := cur.Decode(&doc); err != nil {
			cur.Close(ctx)
			return nil, err
		}
		vs, _ := doc["values"].([]interface{})
		values = append(values, vs...)
	}
	if err := cur.Err(); err != nil {
		cur.Close(ctx)
		return nil, err
	}
	if err := cur.Close(ctx); err != nil {
		return nil, err
	}
	return values, nil
}
