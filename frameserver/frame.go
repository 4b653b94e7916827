// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package frameserver

import (
	"fmt"
	"strconv"

	"github.com/diffeo/go-framestore/frame"
	"github.com/diffeo/go-framestore/framedata"
	"github.com/gorilla/mux"
)

// frameError maps the frame cache's caller errors onto 400 responses,
// leaving everything else untouched.
func frameError(err error) error {
	switch err.(type) {
	case frame.InvalidNumberError, frame.SchemaError, frame.ReservedFieldError,
		frame.FieldAccessError, frame.UnsupportedRecordError:
		return framedata.ErrBadRequest{Err: err}
	}
	return err
}

func errNoFrame(n int) error {
	return framedata.ErrNotFound{Err: fmt.Errorf("no frame %d", n)}
}

// frameData copies a record's visible fields into a wire data dict.
func frameData(rec frame.Record) (framedata.DataDict, error) {
	data := framedata.DataDict{}
	for _, name := range rec.Fields() {
		v, err := rec.Get(name)
		if err != nil {
			return nil, err
		}
		data[name] = v
	}
	return data, nil
}

// recordFromData builds a transient record from wire data.
func recordFromData(data framedata.DataDict) (*frame.Frame, error) {
	rec := frame.NewFrame()
	for name, v := range data {
		if err := rec.Set(name, v); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (api *restAPI) fillFrame(ctx *reqContext, n int, rec frame.Record, result *framedata.Frame) error {
	result.Number = n
	data, err := frameData(rec)
	if err != nil {
		return err
	}
	result.Data = data
	id, _ := ctx.Sample.ID()
	return buildURLs(api.Router,
		"dataset", ctx.Dataset.Name(),
		"sample", string(id),
		"number", strconv.Itoa(n),
	).URL(&result.URL, "frame").Error
}

func (api *restAPI) listFrames(ctx *reqContext, frames *frame.Frames) (interface{}, error) {
	result := framedata.FrameList{}
	it := frames.Iter()
	defer it.Close(ctx.Context)
	for it.Next(ctx.Context) {
		one := framedata.Frame{}
		if err := api.fillFrame(ctx, it.Number(), it.Record(), &one); err != nil {
			return nil, err
		}
		result.Frames = append(result.Frames, one)
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// FrameList gets every frame of a sample in ascending frame number
// order.
func (api *restAPI) FrameList(ctx *reqContext) (interface{}, error) {
	return api.listFrames(ctx, ctx.Sample.Frames())
}

// FramePost stores one frame at the number named in the request body,
// replacing any frame already there.  Fields the dataset's frame
// schema does not declare yet are declared.
func (api *restAPI) FramePost(ctx *reqContext, in interface{}) (interface{}, error) {
	req, valid := in.(framedata.Frame)
	if !valid {
		return nil, errUnmarshal
	}
	rec, err := recordFromData(req.Data)
	if err != nil {
		return nil, frameError(err)
	}
	frames := ctx.Sample.Frames()
	if err = frames.Set(ctx.Context, req.Number, rec); err != nil {
		return nil, frameError(err)
	}
	if err = frames.Save(ctx.Context); err != nil {
		return nil, frameError(err)
	}
	saved, err := frames.Get(ctx.Context, req.Number)
	if err != nil {
		return nil, frameError(err)
	}
	result := framedata.Frame{}
	if err = api.fillFrame(ctx, req.Number, saved, &result); err != nil {
		return nil, err
	}
	return responseCreated{
		Location: result.URL,
		Body:     result,
	}, nil
}

// FramesDelete removes every frame of a sample.
func (api *restAPI) FramesDelete(ctx *reqContext) (interface{}, error) {
	frames := ctx.Sample.Frames()
	frames.Clear()
	return nil, frames.Save(ctx.Context)
}

// FrameGet retrieves a single frame.
func (api *restAPI) FrameGet(ctx *reqContext) (interface{}, error) {
	frames := ctx.Sample.Frames()
	rec, err := frames.Get(ctx.Context, ctx.Number)
	if err != nil {
		return nil, frameError(err)
	}
	if !rec.Backed() {
		return nil, errNoFrame(ctx.Number)
	}
	result := framedata.Frame{}
	if err = api.fillFrame(ctx, ctx.Number, rec, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// FramePut updates a single frame in place, creating it if absent.
// Fields named in the request body are assigned over the stored
// values; fields not named keep their stored values.
func (api *restAPI) FramePut(ctx *reqContext, in interface{}) (interface{}, error) {
	req, valid := in.(framedata.Frame)
	if !valid {
		return nil, errUnmarshal
	}
	frames := ctx.Sample.Frames()
	rec, err := frames.Get(ctx.Context, ctx.Number)
	if err != nil {
		return nil, frameError(err)
	}
	incoming, err := recordFromData(req.Data)
	if err != nil {
		return nil, frameError(err)
	}
	merged := rec.Copy()
	if err = merged.Merge(incoming, frame.MergeOptions{Overwrite: true}); err != nil {
		return nil, frameError(err)
	}
	if err = frames.Set(ctx.Context, ctx.Number, merged); err != nil {
		return nil, frameError(err)
	}
	if err = frames.Save(ctx.Context); err != nil {
		return nil, frameError(err)
	}
	saved, err := frames.Get(ctx.Context, ctx.Number)
	if err != nil {
		return nil, frameError(err)
	}
	result := framedata.Frame{}
	if err = api.fillFrame(ctx, ctx.Number, saved, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// FrameDelete removes a single frame.
func (api *restAPI) FrameDelete(ctx *reqContext) (interface{}, error) {
	frames := ctx.Sample.Frames()
	has, err := frames.Has(ctx.Context, ctx.Number)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, errNoFrame(ctx.Number)
	}
	frames.Delete(ctx.Number)
	return nil, frames.Save(ctx.Context)
}

// FrameQueryPost runs a filtered view over a sample's frames and
// returns the matching records.
func (api *restAPI) FrameQueryPost(ctx *reqContext, in interface{}) (interface{}, error) {
	req, valid := in.(framedata.FrameQuery)
	if !valid {
		return nil, errUnmarshal
	}
	spec, err := viewSpecFromQuery(req)
	if err != nil {
		return nil, err
	}
	return api.listFrames(ctx, ctx.Sample.FramesView(spec))
}

// FrameSavePost stores a batch of frames in one shot, replacing any
// frames already at their numbers.
func (api *restAPI) FrameSavePost(ctx *reqContext, in interface{}) (interface{}, error) {
	req, valid := in.(framedata.FrameList)
	if !valid {
		return nil, errUnmarshal
	}
	update := make(map[int]frame.Record, len(req.Frames))
	for _, f := range req.Frames {
		rec, err := recordFromData(f.Data)
		if err != nil {
			return nil, frameError(err)
		}
		update[f.Number] = rec
	}
	frames := ctx.Sample.Frames()
	if err := frames.Update(ctx.Context, update, true, true); err != nil {
		return nil, frameError(err)
	}
	return nil, frames.Save(ctx.Context)
}

// PopulateFrame adds frame-specific routes to a router.  r should be
// the subrouter rooted at a single sample.
func (api *restAPI) PopulateFrame(r *mux.Router) {
	r.Path("/frame").Name("frames").Handler(&resourceHandler{
		Representation: framedata.Frame{},
		Context:        api.Context,
		Get:            api.FrameList,
		Post:           api.FramePost,
		Delete:         api.FramesDelete,
	})
	r.Path("/frame/{number}").Name("frame").Handler(&resourceHandler{
		Representation: framedata.Frame{},
		Context:        api.Context,
		Get:            api.FrameGet,
		Put:            api.FramePut,
		Delete:         api.FrameDelete,
	})
	r.Path("/frame_query").Name("frameQuery").Handler(&resourceHandler{
		Representation: framedata.FrameQuery{},
		Context:        api.Context,
		Post:           api.FrameQueryPost,
	})
	r.Path("/frame_save").Name("frameSave").Handler(&resourceHandler{
		Representation: framedata.FrameList{},
		Context:        api.Context,
		Post:           api.FrameSavePost,
	})
}
