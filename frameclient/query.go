// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package frameclient

import (
	"fmt"

	"github.com/diffeo/go-framestore/document"
	"github.com/diffeo/go-framestore/frame"
	"github.com/diffeo/go-framestore/framedata"
)

// QueryFromViewSpec translates a local view specification into the
// wire query the frame_query endpoint takes, so code written against
// the frame package's views can run them remotely.
func QueryFromViewSpec(spec frame.ViewSpec) (framedata.FrameQuery, error) {
	q := framedata.FrameQuery{
		Select:  spec.Select,
		Exclude: spec.Exclude,
	}
	match, err := filterToWire(spec.Match)
	if err != nil {
		return q, err
	}
	q.Match = match
	for path, filter := range spec.Filters {
		m, err := filterToWire(filter)
		if err != nil {
			return q, err
		}
		if q.Filters == nil {
			q.Filters = make(map[string]map[string]interface{}, len(spec.Filters))
		}
		q.Filters[path] = m
	}
	return q, nil
}

func filterToWire(f document.Filter) (map[string]interface{}, error) {
	if len(f) == 0 {
		return nil, nil
	}
	m := make(map[string]interface{}, len(f))
	for path, cond := range f {
		wire, err := condToWire(cond)
		if err != nil {
			return nil, err
		}
		m[path] = wire
	}
	return m, nil
}

// condToWire always emits the explicit operator form; a literal map
// value could be mistaken for an operator object.
func condToWire(c document.Cond) (interface{}, error) {
	switch c.Op {
	case document.OpEq:
		return map[string]interface{}{"eq": c.Value}, nil
	case document.OpNe:
		return map[string]interface{}{"ne": c.Value}, nil
	case document.OpIn:
		return map[string]interface{}{"in": c.Values}, nil
	case document.OpGt:
		return map[string]interface{}{"gt": c.Value}, nil
	case document.OpGte:
		return map[string]interface{}{"gte": c.Value}, nil
	case document.OpLt:
		return map[string]interface{}{"lt": c.Value}, nil
	case document.OpLte:
		return map[string]interface{}{"lte": c.Value}, nil
	case document.OpExists:
		enabled, _ := c.Value.(bool)
		return map[string]interface{}{"exists": enabled}, nil
	}
	return nil, fmt.Errorf("condition operator %v has no wire form", c.Op)
}
