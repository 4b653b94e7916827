// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package frame

import (
	"sort"
	"strings"

	"github.com/diffeo/go-framestore/document"
)

// ViewSpec describes the transformation a filtered view applies to a
// sample's frames: which frames it keeps, which fields its records
// carry, and which elements survive inside array fields.  The cache
// takes the conditions as already resolved; composing them out of a
// higher-level query language is the caller's concern.
type ViewSpec struct {
	// Match keeps only frames whose documents satisfy the filter.
	Match document.Filter

	// Select, when non-empty, restricts records to these fields.
	// The frame number and the system fields always ride along.
	Select []string

	// Exclude drops these fields from the records.
	Exclude []string

	// Filters narrows array-valued fields, keyed by dotted field
	// path, to the elements matching the conditions.
	Filters map[string]document.Filter
}

// view is a normalized ViewSpec: the selection and exclusion sets the
// records carry, plus the filtered paths in a stable order.
type view struct {
	spec  ViewSpec
	sel   map[string]bool // nil when the view selects every field
	excl  map[string]bool
	paths []string        // sorted filtered array paths
	roots map[string]bool // top-level fields containing a filtered path
}

func newView(spec ViewSpec) *view {
	v := &view{spec: spec}
	if len(spec.Select) > 0 {
		v.sel = make(map[string]bool, len(spec.Select))
		for _, name := range spec.Select {
			if name == "frame_number" || strings.HasPrefix(name, "_") {
				continue
			}
			v.sel[name] = true
		}
	}
	for _, name := range spec.Exclude {
		if name == "frame_number" || strings.HasPrefix(name, "_") {
			continue
		}
		if v.excl == nil {
			v.excl = make(map[string]bool)
		}
		v.excl[name] = true
	}
	if len(spec.Filters) > 0 {
		v.paths = make([]string, 0, len(spec.Filters))
		v.roots = make(map[string]bool, len(spec.Filters))
		for path := range spec.Filters {
			v.paths = append(v.paths, path)
			root := path
			if i := strings.Index(path, "."); i >= 0 {
				root = path[:i]
			}
			v.roots[root] = true
		}
		sort.Strings(v.paths)
	}
	return v
}

// allFields reports whether the view passes every frame through
// unmodified, in which case reads and writes can take the unfiltered
// cache's paths wholesale.
func (v *view) allFields() bool {
	return len(v.spec.Match) == 0 && v.sel == nil && len(v.excl) == 0 && len(v.paths) == 0
}

// filtersFrames reports whether the view can drop whole frames, which
// forces existence checks and counts through the pipeline.
func (v *view) filtersFrames() bool {
	return len(v.spec.Match) > 0
}

// needsPipeline reports whether record lookups and scans must run the
// aggregation pipeline rather than plain finds.
func (v *view) needsPipeline() bool {
	return len(v.spec.Match) > 0 || len(v.paths) > 0
}

// match builds the lead match filter: the parent link, the view's
// frame conditions, and any extra per-call conditions.
func (v *view) match(sid document.ID, extra document.Filter) document.Filter {
	f := document.Filter{"_sample_id": document.Eq(sid)}
	for path, cond := range v.spec.Match {
		f[path] = cond
	}
	for path, cond := range extra {
		f[path] = cond
	}
	return f
}

// appendStages appends the view's element filters and projections to
// a pipeline, after whatever lead match the caller built.
func (v *view) appendStages(pipe document.Pipeline) document.Pipeline {
	for _, path := range v.paths {
		pipe = append(pipe, document.FilterArray(path, v.spec.Filters[path]))
	}
	if v.sel != nil {
		names := make([]string, 0, len(v.sel)+4)
		for name := range v.sel {
			names = append(names, name)
		}
		sort.Strings(names)
		names = append(names, "frame_number", "_sample_id", "_created_at", "_last_modified_at")
		pipe = append(pipe, document.SelectFields(names...))
	}
	if len(v.excl) > 0 {
		names := make([]string, 0, len(v.excl))
		for name := range v.excl {
			names = append(names, name)
		}
		sort.Strings(names)
		pipe = append(pipe, document.ExcludeFields(names...))
	}
	return pipe
}

// strip applies the view's projections and element filters to a
// single document, producing what the store-side pipeline would have
// returned for it.  It is idempotent, so documents that already went
// through the pipeline come out unchanged.
func (v *view) strip(doc document.Document) document.Document {
	pipe := v.appendStages(nil)
	if len(pipe) == 0 {
		return doc
	}
	return pipe.Apply([]document.Document{doc})[0]
}

// newRecord materializes a view record over doc.
func (v *view) newRecord(doc document.Document, backed bool) *FrameView {
	return &FrameView{
		frameDoc: frameDoc{doc: v.strip(doc), backed: backed},
		sel:      v.sel,
		excl:     v.excl,
	}
}
