// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package frameclient

import (
	"context"

	"github.com/diffeo/go-framestore/framedata"
)

// Dataset is a handle to one dataset on a remote frame store.
type Dataset struct {
	resource
	Representation framedata.Dataset
}

// Refresh fetches the dataset document again, updating the frame
// field list and the sample and frame counts.
func (d *Dataset) Refresh(ctx context.Context) error {
	d.Representation = framedata.Dataset{}
	return d.Get(ctx, &d.Representation)
}

// Name returns the dataset's name.
func (d *Dataset) Name() string { return d.Representation.Name }

// FrameFields returns the declared frame fields, as of the last
// refresh.
func (d *Dataset) FrameFields() []framedata.FieldDef {
	return d.Representation.FrameFields
}

// SampleCount returns how many samples the dataset had as of the last
// refresh.
func (d *Dataset) SampleCount() int { return d.Representation.SampleCount }

// FrameCount returns how many frames the dataset had across all of
// its samples as of the last refresh.
func (d *Dataset) FrameCount() int { return d.Representation.FrameCount }

// AddSample adds a new sample for the named media file and returns a
// handle to it.
func (d *Dataset) AddSample(ctx context.Context, filepath string) (*Sample, error) {
	s := &Sample{}
	err := d.PostTo(ctx, d.Representation.SamplesURL, map[string]interface{}{},
		framedata.Sample{Filepath: filepath}, &s.Representation)
	if err != nil {
		return nil, err
	}
	s.session = d.session
	s.URL, err = d.URL.Parse(s.Representation.URL)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Sample retrieves a handle to an existing sample by id.  It fails
// with dataset.ErrNoSample if there is no such sample.
func (d *Dataset) Sample(ctx context.Context, id string) (*Sample, error) {
	var err error
	s := &Sample{}
	s.session = d.session
	s.URL, err = d.Template(d.Representation.SampleURL, map[string]interface{}{"sample": id})
	if err == nil {
		err = s.Refresh(ctx)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Samples retrieves handles to every sample in the dataset.
func (d *Dataset) Samples(ctx context.Context) ([]*Sample, error) {
	resp := framedata.SampleList{}
	err := d.GetFrom(ctx, d.Representation.SamplesURL, map[string]interface{}{}, &resp)
	if err != nil {
		return nil, err
	}
	samples := make([]*Sample, 0, len(resp.Samples))
	for _, sR := range resp.Samples {
		s := &Sample{}
		s.session = d.session
		s.URL, err = d.URL.Parse(sR.URL)
		if err != nil {
			return nil, err
		}
		if err = s.Refresh(ctx); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, nil
}
