// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package frameserver

import (
	"github.com/diffeo/go-framestore/dataset"
	"github.com/diffeo/go-framestore/framedata"
	"github.com/gorilla/mux"
)

func (api *restAPI) fillDatasetShort(name string, summary *framedata.DatasetShort) error {
	summary.Name = name
	return buildURLs(api.Router, "dataset", name).
		URL(&summary.URL, "dataset").
		Error
}

func (api *restAPI) fillDataset(ctx *reqContext, ds *dataset.Dataset, result *framedata.Dataset) error {
	err := api.fillDatasetShort(ds.Name(), &result.DatasetShort)
	if err == nil {
		err = buildURLs(api.Router, "dataset", result.Name).
			URL(&result.SamplesURL, "samples").
			Template(&result.SampleURL, "sample", "sample").
			Error
	}
	if err == nil {
		for _, field := range ds.FrameFields() {
			result.FrameFields = append(result.FrameFields, framedata.FieldDef{
				Name: field.Name,
				Kind: field.Kind,
			})
		}
		if ctx.BoolParam("counts", true) {
			result.SampleCount, err = ds.SampleCount(ctx.Context)
			if err == nil {
				result.FrameCount, err = ds.FrameCount(ctx.Context)
			}
		}
	}
	return err
}

// DatasetList gets a list of all datasets known in the system.
func (api *restAPI) DatasetList(ctx *reqContext) (interface{}, error) {
	names, err := api.Root.List(ctx.Context)
	if err != nil {
		return nil, err
	}
	result := framedata.DatasetList{}
	for _, name := range names {
		summary := framedata.DatasetShort{}
		err = api.fillDatasetShort(name, &summary)
		if err != nil {
			return nil, err
		}
		result.Datasets = append(result.Datasets, summary)
	}
	return result, nil
}

// DatasetPost creates a new dataset.
func (api *restAPI) DatasetPost(ctx *reqContext, in interface{}) (interface{}, error) {
	req, valid := in.(framedata.DatasetShort)
	if !valid {
		return nil, errUnmarshal
	}
	ds, err := api.Root.Create(ctx.Context, req.Name)
	switch err {
	case nil:
	case dataset.ErrNoName:
		return nil, framedata.ErrBadRequest{Err: err}
	case dataset.ErrDatasetExists:
		return nil, framedata.ErrConflict{Err: err}
	default:
		return nil, err
	}
	// We will return "created", where the content is the full
	// dataset data
	result := framedata.Dataset{}
	err = api.fillDataset(ctx, ds, &result)
	if err != nil {
		return nil, err
	}
	return responseCreated{
		Location: result.URL,
		Body:     result,
	}, nil
}

// DatasetGet retrieves an existing dataset.  Pass counts=false as a
// query parameter to skip the sample and frame counts, which require
// additional storage queries.
func (api *restAPI) DatasetGet(ctx *reqContext) (interface{}, error) {
	result := framedata.Dataset{}
	err := api.fillDataset(ctx, ctx.Dataset, &result)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DatasetDelete destroys an existing dataset, including all of its
// samples and frames.
func (api *restAPI) DatasetDelete(ctx *reqContext) (interface{}, error) {
	err := api.Root.Delete(ctx.Context, ctx.Dataset.Name())
	if err == dataset.ErrNoDataset {
		err = framedata.ErrNotFound{Err: err}
	}
	return nil, err
}

// PopulateDataset adds dataset-specific routes to a router.  r should
// be rooted at the root of the frame store URL tree, e.g. "/".
func (api *restAPI) PopulateDataset(r *mux.Router) {
	r.Path("/dataset").Name("datasets").Handler(&resourceHandler{
		Representation: framedata.DatasetShort{},
		Context:        api.Context,
		Get:            api.DatasetList,
		Post:           api.DatasetPost,
	})
	r.Path("/dataset/{dataset}").Name("dataset").Handler(&resourceHandler{
		Representation: framedata.Dataset{},
		Context:        api.Context,
		Get:            api.DatasetGet,
		Delete:         api.DatasetDelete,
	})
	sr := r.PathPrefix("/dataset/{dataset}").Subrouter()
	api.PopulateSample(sr)
}
