// Copyright 2017-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package document

import (
	"fmt"
	"strings"
)

// ApplyUpdate applies op's Set and Unset clauses to doc in place.
// This is the reference evaluation used by the in-process backends;
// the caller has already established that doc matches op.Filter.
//
// A Set path ending in a positional "$" segment addresses one element
// of the array named by the preceding segments: the element whose
// "_id" equals the value the filter pinned under "arrayPath._id".  If
// the array or the element is missing the clause is skipped, matching
// the no-op a server-side positional update degenerates to when its
// array condition matched a different document state.
func ApplyUpdate(doc Document, op UpdateOne) error {
	for path, value := range op.Set {
		idx := strings.Index(path, ".$")
		if idx < 0 {
			setPath(doc, path, value)
			continue
		}
		if path[idx+2:] != "" {
			return fmt.Errorf("positional segment must terminate the path: %q", path)
		}
		arrPath := path[:idx]
		cond, ok := op.Filter[arrPath+"._id"]
		if !ok || cond.Op != OpEq {
			return fmt.Errorf("positional update of %q requires an equality filter on %q", path, arrPath+"._id")
		}
		container, key, ok := navigate(doc, arrPath)
		if !ok {
			continue
		}
		arr, ok := container[key].([]interface{})
		if !ok {
			continue
		}
		for i, elem := range arr {
			m, ok := asDocument(elem)
			if !ok {
				continue
			}
			if equalValues(m["_id"], cond.Value) {
				arr[i] = value
				break
			}
		}
	}
	for _, path := range op.Unset {
		if container, key, ok := navigate(doc, path); ok {
			delete(container, key)
		}
	}
	return nil
}

// UpsertFromFilter synthesizes the base document a failed-to-match
// upsert inserts: every equality condition in the filter becomes a
// field, skipping positional and array-element paths.
func UpsertFromFilter(f Filter) Document {
	doc := make(Document)
	for path, cond := range f {
		if cond.Op != OpEq || strings.Contains(path, "$") {
			continue
		}
		setPath(doc, path, cond.Value)
	}
	return doc
}

// Lookup resolves a dotted path to the value it addresses, walking
// nested documents but not descending into arrays.  The boolean
// reports whether the full path is present.
func Lookup(doc Document, path string) (interface{}, bool) {
	container, key, ok := navigate(doc, path)
	if !ok {
		return nil, false
	}
	v, ok := container[key]
	return v, ok
}

// navigate walks all but the last segment of a dotted path through
// nested documents and returns the final container and key.  It does
// not descend into arrays.
func navigate(doc Document, path string) (Document, string, bool) {
	segments := strings.Split(path, ".")
	current := doc
	for _, seg := range segments[:len(segments)-1] {
		next, ok := asDocument(current[seg])
		if !ok {
			return nil, "", false
		}
		current = next
	}
	return current, segments[len(segments)-1], true
}

// setPath assigns value at a dotted path, creating intermediate
// documents as needed.  An intermediate value that is not a document
// is replaced by one.
func setPath(doc Document, path string, value interface{}) {
	segments := strings.Split(path, ".")
	current := doc
	for _, seg := range segments[:len(segments)-1] {
		next, ok := asDocument(current[seg])
		if !ok {
			next = make(Document)
			current[seg] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
}
