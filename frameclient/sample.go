// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package frameclient

import (
	"context"
	"strconv"

	"github.com/diffeo/go-framestore/framedata"
)

// Sample is a handle to one video sample on a remote frame store.
type Sample struct {
	resource
	Representation framedata.Sample
}

// Refresh fetches the sample document again.
func (s *Sample) Refresh(ctx context.Context) error {
	s.Representation = framedata.Sample{}
	return s.Get(ctx, &s.Representation)
}

// ID returns the sample's id.
func (s *Sample) ID() string { return s.Representation.ID }

// Filepath returns the path of the sample's media file.
func (s *Sample) Filepath() string { return s.Representation.Filepath }

// Frames retrieves every frame of the sample in ascending frame
// number order.
func (s *Sample) Frames(ctx context.Context) ([]framedata.Frame, error) {
	resp := framedata.FrameList{}
	err := s.GetFrom(ctx, s.Representation.FramesURL, map[string]interface{}{}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Frames, nil
}

// Frame retrieves the frame with the given number.
func (s *Sample) Frame(ctx context.Context, n int) (framedata.Frame, error) {
	resp := framedata.Frame{}
	err := s.GetFrom(ctx, s.Representation.FrameURL, frameVars(n), &resp)
	return resp, err
}

// SetFrame stores data as frame n, replacing any frame already there.
// Fields the dataset's frame schema does not declare yet are declared.
func (s *Sample) SetFrame(ctx context.Context, n int, data framedata.DataDict) (framedata.Frame, error) {
	resp := framedata.Frame{}
	err := s.PostTo(ctx, s.Representation.FramesURL, map[string]interface{}{},
		framedata.Frame{Number: n, Data: data}, &resp)
	return resp, err
}

// UpdateFrame assigns the fields in data over frame n, creating the
// frame if it is absent.  Fields not named keep their stored values.
func (s *Sample) UpdateFrame(ctx context.Context, n int, data framedata.DataDict) (framedata.Frame, error) {
	resp := framedata.Frame{}
	err := s.PutTo(ctx, s.Representation.FrameURL, frameVars(n),
		framedata.Frame{Number: n, Data: data}, &resp)
	return resp, err
}

// DeleteFrame removes the frame with the given number.
func (s *Sample) DeleteFrame(ctx context.Context, n int) error {
	return s.DeleteAt(ctx, s.Representation.FrameURL, frameVars(n), nil)
}

// ClearFrames removes every frame of the sample.
func (s *Sample) ClearFrames(ctx context.Context) error {
	return s.DeleteAt(ctx, s.Representation.FramesURL, map[string]interface{}{}, nil)
}

// Query runs a filtered view over the sample's frames and returns the
// matching records in ascending frame number order.
func (s *Sample) Query(ctx context.Context, q framedata.FrameQuery) ([]framedata.Frame, error) {
	resp := framedata.FrameList{}
	err := s.PostTo(ctx, s.Representation.FrameQueryURL, map[string]interface{}{}, q, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Frames, nil
}

// SaveFrames stores a batch of frames in one round trip, replacing
// any frames already at their numbers.
func (s *Sample) SaveFrames(ctx context.Context, frames []framedata.Frame) error {
	return s.PostTo(ctx, s.Representation.FrameSaveURL, map[string]interface{}{},
		framedata.FrameList{Frames: frames}, nil)
}

func frameVars(n int) map[string]interface{} {
	return map[string]interface{}{"number": strconv.Itoa(n)}
}
