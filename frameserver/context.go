// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package frameserver

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/diffeo/go-framestore/dataset"
	"github.com/diffeo/go-framestore/document"
	"github.com/diffeo/go-framestore/frame"
	"github.com/diffeo/go-framestore/framedata"
	"github.com/gorilla/mux"
)

// errUnmarshal is returned if the put/post contract is violated and
// a handler function is passed the wrong type.
var errUnmarshal = framedata.ErrBadRequest{
	Err: errors.New("Invalid input format"),
}

// reqContext holds all of the information and objects that can be
// extracted from URL parameters.
type reqContext struct {
	Context     context.Context
	Dataset     *dataset.Dataset
	Sample      *dataset.Sample
	Number      int
	QueryParams url.Values
}

func (api *restAPI) Context(req *http.Request) (ctx *reqContext, err error) {
	ctx = &reqContext{Context: req.Context()}
	ctx.QueryParams = req.URL.Query()
	vars := mux.Vars(req)

	var present bool
	var name, sample, number string

	if name, present = vars["dataset"]; present && err == nil {
		name, err = framedata.MaybeDecodeName(name)
		if err == nil {
			ctx.Dataset, err = api.Root.Load(ctx.Context, name)
		}
		if err == dataset.ErrNoDataset {
			err = framedata.ErrNotFound{Err: err}
		}
	}

	if sample, present = vars["sample"]; present && err == nil && ctx.Dataset != nil {
		sample, err = framedata.MaybeDecodeName(sample)
		if err == nil {
			ctx.Sample, err = ctx.Dataset.Sample(ctx.Context, document.ID(sample))
		}
		if err == dataset.ErrNoSample {
			err = framedata.ErrNotFound{Err: err}
		}
	}

	if number, present = vars["number"]; present && err == nil {
		ctx.Number, err = strconv.Atoi(number)
		if err != nil || ctx.Number < 1 {
			err = framedata.ErrBadRequest{
				Err: frame.InvalidNumberError{Number: ctx.Number},
			}
		}
	}

	return
}

// BoolParam looks at ctx.QueryParams for a parameter named name.  If
// it has a normally-boolean value (1, on, false, no, ...) then return
// that value.  Otherwise (empty string, foo, ...) return def.
func (ctx *reqContext) BoolParam(name string, def bool) bool {
	switch strings.ToLower(ctx.QueryParams.Get(name)) {
	case "0", "f", "n", "false", "off", "no":
		return false
	case "1", "t", "y", "true", "on", "yes":
		return true
	default:
		return def
	}
}
