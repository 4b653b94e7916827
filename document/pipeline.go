// Copyright 2017-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package document

import "sort"

// Pipeline is an ordered sequence of transformation stages applied to
// a collection's documents, in the manner of a MongoDB aggregation.
// Each Stage sets exactly one of its members.
type Pipeline []Stage

// Stage is one pipeline step.  Exactly one field should be non-zero:
//
//   - Match keeps only documents satisfying a filter.
//   - Select keeps only the named top-level fields (plus "_id").
//   - Exclude drops the named top-level fields.
//   - FilterElems narrows an array field to the elements matching
//     per-element conditions.
//   - SortBy orders the stream.
//   - Collect gathers every value of one field across the stream
//     into a single output document {"values": [...]}; an empty
//     stream collects to no output at all.
type Stage struct {
	Match       Filter
	Select      []string
	Exclude     []string
	FilterElems *ElemFilter
	SortBy      []Sort
	Collect     string
}

// ElemFilter filters the elements of the array at Path (a dotted path
// whose final segment is the array field).  An element is kept if it
// satisfies every condition in Cond, evaluated against the element as
// a document.
type ElemFilter struct {
	Path string
	Cond Filter
}

// Match returns the stage's filter, so pipelines read naturally when
// constructed inline.
func Match(f Filter) Stage { return Stage{Match: f} }

// SelectFields builds a projection stage keeping only the named
// top-level fields.
func SelectFields(fields ...string) Stage { return Stage{Select: fields} }

// ExcludeFields builds a projection stage dropping the named
// top-level fields.
func ExcludeFields(fields ...string) Stage { return Stage{Exclude: fields} }

// FilterArray builds a stage narrowing the array at path to elements
// matching cond.
func FilterArray(path string, cond Filter) Stage {
	return Stage{FilterElems: &ElemFilter{Path: path, Cond: cond}}
}

// SortBy builds a sorting stage.
func SortBy(keys ...Sort) Stage { return Stage{SortBy: keys} }

// Collect builds a terminal stage gathering all values of field into
// one document {"values": [...]}.
func Collect(field string) Stage { return Stage{Collect: field} }

// Apply runs the pipeline over docs and returns the transformed
// stream.  This is the reference evaluation used by the in-process
// backends; documents are cloned before any stage mutates them, so
// the caller's slice is left untouched.
func (p Pipeline) Apply(docs []Document) []Document {
	out := make([]Document, len(docs))
	copy(out, docs)

	cloned := false
	for _, stage := range p {
		switch {
		case stage.Match != nil:
			var kept []Document
			for _, doc := range out {
				if stage.Match.Matches(doc) {
					kept = append(kept, doc)
				}
			}
			out = kept

		case len(stage.Select) > 0:
			out = cloneAll(out, &cloned)
			for i, doc := range out {
				out[i] = selectFields(doc, stage.Select)
			}

		case len(stage.Exclude) > 0:
			out = cloneAll(out, &cloned)
			for _, doc := range out {
				for _, f := range stage.Exclude {
					delete(doc, f)
				}
			}

		case stage.FilterElems != nil:
			out = cloneAll(out, &cloned)
			for _, doc := range out {
				filterElems(doc, stage.FilterElems)
			}

		case len(stage.SortBy) > 0:
			sortDocs(out, stage.SortBy)

		case stage.Collect != "":
			var values []interface{}
			for _, doc := range out {
				if vs, ok := lookupPath(doc, stage.Collect); ok {
					values = append(values, vs[0])
				}
			}
			if len(out) == 0 {
				return nil
			}
			return []Document{{"values": values}}
		}
	}
	return out
}

func cloneAll(docs []Document, cloned *bool) []Document {
	if *cloned {
		return docs
	}
	out := make([]Document, len(docs))
	for i, doc := range docs {
		out[i] = Clone(doc)
	}
	*cloned = true
	return out
}

func selectFields(doc Document, fields []string) Document {
	out := make(Document, len(fields)+1)
	if id, ok := doc["_id"]; ok {
		out["_id"] = id
	}
	for _, f := range fields {
		if v, ok := doc[f]; ok {
			out[f] = v
		}
	}
	return out
}

func filterElems(doc Document, ef *ElemFilter) {
	container, key, ok := navigate(doc, ef.Path)
	if !ok {
		return
	}
	arr, ok := container[key].([]interface{})
	if !ok {
		return
	}
	kept := make([]interface{}, 0, len(arr))
	for _, elem := range arr {
		m, ok := asDocument(elem)
		if !ok {
			continue
		}
		if ef.Cond.Matches(m) {
			kept = append(kept, elem)
		}
	}
	container[key] = kept
}

// sortDocs orders docs by the given keys.  Missing fields sort before
// present ones, matching MongoDB's treatment of null.
func sortDocs(docs []Document, keys []Sort) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, key := range keys {
			cmp := compareField(docs[i], docs[j], key.Field)
			if key.Desc {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})
}

func compareField(a, b Document, field string) int {
	av, aok := lookupPath(a, field)
	bv, bok := lookupPath(b, field)
	if !aok || !bok {
		switch {
		case !aok && !bok:
			return 0
		case !aok:
			return -1
		default:
			return 1
		}
	}
	cmp, ok := compareValues(av[0], bv[0])
	if !ok {
		return 0
	}
	return cmp
}
