// Copyright 2017-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package document

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"
)

// This file holds the value-level plumbing shared by the in-process
// backends and the reference filter/pipeline evaluation: dotted-path
// lookup, cross-type comparison, deep cloning, and coercions for the
// numeric and id representations the different storage engines hand
// back.

// Int64 coerces the numeric representations the backends produce
// (native ints, bson int32/int64, msgpack uints, JSON float64 or
// json.Number) to an int64.  Floats coerce only if they are whole.
func Int64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float32:
		if float32(int64(n)) == n {
			return int64(n), true
		}
	case float64:
		if float64(int64(n)) == n {
			return int64(n), true
		}
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
	}
	return 0, false
}

// IDOf coerces a document field value to an ID.  Stores persist ids
// as plain strings, so a round-tripped document may hold either kind.
func IDOf(v interface{}) (ID, bool) {
	switch s := v.(type) {
	case ID:
		return s, true
	case string:
		return ID(s), true
	}
	return "", false
}

// Clone returns a deep copy of doc.  Nested documents and arrays are
// copied; scalar values are shared (they are immutable).
func Clone(doc Document) Document {
	if doc == nil {
		return nil
	}
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = cloneValue(v)
	}
	return out
}

// CloneValue deep-copies a single field value the way Clone copies a
// whole document.
func CloneValue(v interface{}) interface{} {
	return cloneValue(v)
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case Document:
		return Clone(val)
	case map[string]interface{}:
		return Clone(Document(val))
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, e := range val {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

func asDocument(v interface{}) (Document, bool) {
	switch m := v.(type) {
	case Document:
		return m, true
	case map[string]interface{}:
		return Document(m), true
	}
	return nil, false
}

// lookupPath resolves a dotted path against doc.  Intermediate array
// values fan out over their elements; if the final value is itself an
// array, both the array and its elements are candidates, so equality
// can match either the whole array or a contained element.  The
// boolean reports whether the path resolved to anything at all.
func lookupPath(doc Document, path string) ([]interface{}, bool) {
	candidates := []interface{}{doc}
	segments := strings.Split(path, ".")

	for i, seg := range segments {
		var next []interface{}
		for _, cand := range candidates {
			if arr, ok := cand.([]interface{}); ok {
				for _, elem := range arr {
					if m, ok := asDocument(elem); ok {
						if v, present := m[seg]; present {
							next = append(next, v)
						}
					}
				}
				continue
			}
			if m, ok := asDocument(cand); ok {
				if v, present := m[seg]; present {
					next = append(next, v)
				}
			}
		}
		candidates = next
		if len(candidates) == 0 {
			return nil, false
		}
		if i == len(segments)-1 {
			break
		}
	}

	values := make([]interface{}, 0, len(candidates))
	for _, cand := range candidates {
		values = append(values, cand)
		if arr, ok := cand.([]interface{}); ok {
			values = append(values, arr...)
		}
	}
	return values, true
}

// equalValues compares two field values for equality, tolerating the
// representation differences between backends: any two numerics
// compare by value, ids compare as strings, times by Equal.
func equalValues(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if na, ok := toFloat(a); ok {
		if nb, ok := toFloat(b); ok {
			return na == nb
		}
		return false
	}
	if sa, ok := toString(a); ok {
		if sb, ok := toString(b); ok {
			return sa == sb
		}
		return false
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			return ta.Equal(tb)
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two field values, returning -1/0/+1 and
// whether the pair is comparable at all.
func compareValues(a, b interface{}) (int, bool) {
	if na, ok := toFloat(a); ok {
		if nb, ok := toFloat(b); ok {
			switch {
			case na < nb:
				return -1, true
			case na > nb:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	if sa, ok := toString(a); ok {
		if sb, ok := toString(b); ok {
			return strings.Compare(sa, sb), true
		}
		return 0, false
	}
	if ta, ok := a.(time.Time); ok {
		if tb, ok := b.(time.Time); ok {
			switch {
			case ta.Before(tb):
				return -1, true
			case ta.After(tb):
				return 1, true
			default:
				return 0, true
			}
		}
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f, true
		}
	}
	return 0, false
}

func toString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case ID:
		return string(s), true
	}
	return "", false
}
