// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package frameserver

import (
	"fmt"

	"github.com/diffeo/go-framestore/document"
	"github.com/diffeo/go-framestore/frame"
	"github.com/diffeo/go-framestore/framedata"
	"github.com/mitchellh/mapstructure"
)

// condSpec is the decoded form of a single wire comparison object.
type condSpec struct {
	Eq     interface{}   `mapstructure:"eq"`
	Ne     interface{}   `mapstructure:"ne"`
	In     []interface{} `mapstructure:"in"`
	Gt     interface{}   `mapstructure:"gt"`
	Gte    interface{}   `mapstructure:"gte"`
	Lt     interface{}   `mapstructure:"lt"`
	Lte    interface{}   `mapstructure:"lte"`
	Exists *bool         `mapstructure:"exists"`
}

// condKeys are the recognized operator names.  A condition map using
// only these keys is an operator object; any other value is matched
// literally.
var condKeys = map[string]bool{
	"eq": true, "ne": true, "in": true,
	"gt": true, "gte": true, "lt": true, "lte": true,
	"exists": true,
}

func isCondObject(m map[string]interface{}) bool {
	if len(m) == 0 {
		return false
	}
	for key := range m {
		if !condKeys[key] {
			return false
		}
	}
	return true
}

// decodeCond translates one wire condition into a document condition.
// path only labels errors.
func decodeCond(path string, v interface{}) (document.Cond, error) {
	m, valid := v.(map[string]interface{})
	if !valid || !isCondObject(m) {
		return document.Eq(v), nil
	}
	if len(m) != 1 {
		return document.Cond{}, framedata.ErrBadRequest{
			Err: fmt.Errorf("field %q: one operator per condition", path),
		}
	}
	var op string
	for key := range m {
		op = key
	}
	var spec condSpec
	config := mapstructure.DecoderConfig{Result: &spec, ErrorUnused: true}
	decoder, err := mapstructure.NewDecoder(&config)
	if err == nil {
		err = decoder.Decode(m)
	}
	if err != nil {
		return document.Cond{}, framedata.ErrBadRequest{
			Err: fmt.Errorf("field %q: %v", path, err),
		}
	}
	switch op {
	case "eq":
		return document.Eq(spec.Eq), nil
	case "ne":
		return document.Ne(spec.Ne), nil
	case "in":
		return document.In(spec.In...), nil
	case "gt":
		return document.Gt(spec.Gt), nil
	case "gte":
		return document.Gte(spec.Gte), nil
	case "lt":
		return document.Lt(spec.Lt), nil
	case "lte":
		return document.Lte(spec.Lte), nil
	default:
		if spec.Exists == nil {
			return document.Cond{}, framedata.ErrBadRequest{
				Err: fmt.Errorf("field %q: exists takes true or false", path),
			}
		}
		return document.Exists(*spec.Exists), nil
	}
}

// filterFromWire translates a wire match map, one condition per dotted
// field path, into a document filter.
func filterFromWire(m map[string]interface{}) (document.Filter, error) {
	if len(m) == 0 {
		return nil, nil
	}
	filter := make(document.Filter, len(m))
	for path, v := range m {
		cond, err := decodeCond(path, v)
		if err != nil {
			return nil, err
		}
		filter[path] = cond
	}
	return filter, nil
}

// viewSpecFromQuery translates a wire frame query into the view
// specification the frame cache consumes.
func viewSpecFromQuery(q framedata.FrameQuery) (frame.ViewSpec, error) {
	spec := frame.ViewSpec{
		Select:  q.Select,
		Exclude: q.Exclude,
	}
	match, err := filterFromWire(q.Match)
	if err != nil {
		return spec, err
	}
	spec.Match = match
	for path, m := range q.Filters {
		cond, err := filterFromWire(m)
		if err != nil {
			return spec, err
		}
		if spec.Filters == nil {
			spec.Filters = make(map[string]document.Filter, len(q.Filters))
		}
		spec.Filters[path] = cond
	}
	return spec, nil
}
