// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package frameserver

import (
	"github.com/diffeo/go-framestore/dataset"
	"github.com/diffeo/go-framestore/framedata"
	"github.com/gorilla/mux"
)

func (api *restAPI) fillSampleShort(ctx *reqContext, s *dataset.Sample, summary *framedata.SampleShort) error {
	id, _ := s.ID()
	summary.ID = string(id)
	return buildURLs(api.Router,
		"dataset", ctx.Dataset.Name(),
		"sample", summary.ID,
	).URL(&summary.URL, "sample").Error
}

func (api *restAPI) fillSample(ctx *reqContext, s *dataset.Sample, result *framedata.Sample) error {
	err := api.fillSampleShort(ctx, s, &result.SampleShort)
	if err == nil {
		result.Filepath = s.Filepath()
		err = buildURLs(api.Router,
			"dataset", ctx.Dataset.Name(),
			"sample", result.ID,
		).
			URL(&result.FramesURL, "frames").
			Template(&result.FrameURL, "frame", "number").
			URL(&result.FrameQueryURL, "frameQuery").
			URL(&result.FrameSaveURL, "frameSave").
			Error
	}
	return err
}

// SampleList gets a list of all samples in a dataset.
func (api *restAPI) SampleList(ctx *reqContext) (interface{}, error) {
	samples, err := ctx.Dataset.Samples(ctx.Context)
	if err != nil {
		return nil, err
	}
	result := framedata.SampleList{}
	for _, s := range samples {
		summary := framedata.SampleShort{}
		err = api.fillSampleShort(ctx, s, &summary)
		if err != nil {
			return nil, err
		}
		result.Samples = append(result.Samples, summary)
	}
	return result, nil
}

// SamplePost adds a new sample to a dataset.
func (api *restAPI) SamplePost(ctx *reqContext, in interface{}) (interface{}, error) {
	req, valid := in.(framedata.Sample)
	if !valid {
		return nil, errUnmarshal
	}
	s := dataset.NewSample(req.Filepath)
	err := ctx.Dataset.AddSample(ctx.Context, s)
	switch err {
	case nil:
	case dataset.ErrNoFilepath, dataset.ErrSampleBound:
		return nil, framedata.ErrBadRequest{Err: err}
	default:
		return nil, err
	}
	result := framedata.Sample{}
	err = api.fillSample(ctx, s, &result)
	if err != nil {
		return nil, err
	}
	return responseCreated{
		Location: result.URL,
		Body:     result,
	}, nil
}

// SampleGet retrieves a single sample.
func (api *restAPI) SampleGet(ctx *reqContext) (interface{}, error) {
	result := framedata.Sample{}
	err := api.fillSample(ctx, ctx.Sample, &result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SampleDelete removes a sample and all of its frames.
func (api *restAPI) SampleDelete(ctx *reqContext) (interface{}, error) {
	id, _ := ctx.Sample.ID()
	err := ctx.Dataset.DeleteSample(ctx.Context, id)
	if err == dataset.ErrNoSample {
		err = framedata.ErrNotFound{Err: err}
	}
	return nil, err
}

// PopulateSample adds sample-specific routes to a router.  r should be
// the subrouter rooted at a single dataset.
func (api *restAPI) PopulateSample(r *mux.Router) {
	r.Path("/sample").Name("samples").Handler(&resourceHandler{
		Representation: framedata.Sample{},
		Context:        api.Context,
		Get:            api.SampleList,
		Post:           api.SamplePost,
	})
	r.Path("/sample/{sample}").Name("sample").Handler(&resourceHandler{
		Representation: framedata.Sample{},
		Context:        api.Context,
		Get:            api.SampleGet,
		Delete:         api.SampleDelete,
	})
	sr := r.PathPrefix("/sample/{sample}").Subrouter()
	api.PopulateFrame(sr)
}
