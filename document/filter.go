// Copyright 2017-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package document

// Filter selects documents by conditions on their fields, one
// condition per dotted field path.  An empty (or nil) Filter matches
// every document.
//
// Path resolution follows MongoDB's rules: each path segment steps
// into a nested document, and a segment that lands on an array
// fans out over its elements, so a condition matches if any one
// element satisfies it.
type Filter map[string]Cond

// CondOp enumerates the comparison operators a Cond can apply.
type CondOp int

// Comparison operators for Cond.
const (
	OpEq CondOp = iota
	OpNe
	OpIn
	OpGt
	OpGte
	OpLt
	OpLte
	OpExists
)

// Cond is a single comparison applied to one field.  Construct these
// with the package-level helpers (Eq, In, Gt, ...) rather than by
// hand.
type Cond struct {
	Op     CondOp
	Value  interface{}
	Values []interface{}
}

// Eq matches fields equal to v.  As in MongoDB, Eq(nil) also matches
// documents where the field is absent.
func Eq(v interface{}) Cond { return Cond{Op: OpEq, Value: v} }

// Ne matches fields not equal to v.
func Ne(v interface{}) Cond { return Cond{Op: OpNe, Value: v} }

// In matches fields equal to any of vs.
func In(vs ...interface{}) Cond { return Cond{Op: OpIn, Values: vs} }

// Gt matches fields ordered strictly after v.
func Gt(v interface{}) Cond { return Cond{Op: OpGt, Value: v} }

// Gte matches fields ordered at or after v.
func Gte(v interface{}) Cond { return Cond{Op: OpGte, Value: v} }

// Lt matches fields ordered strictly before v.
func Lt(v interface{}) Cond { return Cond{Op: OpLt, Value: v} }

// Lte matches fields ordered at or before v.
func Lte(v interface{}) Cond { return Cond{Op: OpLte, Value: v} }

// Exists matches fields that are present (or absent, if v is false)
// regardless of value.
func Exists(v bool) Cond { return Cond{Op: OpExists, Value: v} }

// Matches reports whether doc satisfies every condition in the
// filter.  This is the reference evaluation used by the in-process
// backends; the server-backed ones translate filters to their native
// query languages instead.
func (f Filter) Matches(doc Document) bool {
	for path, cond := range f {
		if !cond.matches(doc, path) {
			return false
		}
	}
	return true
}

func (c Cond) matches(doc Document, path string) bool {
	values, found := lookupPath(doc, path)

	if c.Op == OpExists {
		want, _ := c.Value.(bool)
		return found == want
	}

	if !found {
		// An absent field still equals nil and is not-equal to
		// anything else.
		switch c.Op {
		case OpEq:
			return c.Value == nil
		case OpNe:
			return c.Value != nil
		}
		return false
	}

	switch c.Op {
	case OpNe:
		// No candidate may equal the value.
		for _, v := range values {
			if equalValues(v, c.Value) {
				return false
			}
		}
		return true
	case OpIn:
		for _, v := range values {
			for _, want := range c.Values {
				if equalValues(v, want) {
					return true
				}
			}
		}
		return false
	}

	// The remaining operators match if any candidate satisfies
	// them.
	for _, v := range values {
		if c.compareOne(v) {
			return true
		}
	}
	return false
}

func (c Cond) compareOne(v interface{}) bool {
	switch c.Op {
	case OpEq:
		return equalValues(v, c.Value)
	case OpGt, OpGte, OpLt, OpLte:
		cmp, ok := compareValues(v, c.Value)
		if !ok {
			return false
		}
		switch c.Op {
		case OpGt:
			return cmp > 0
		case OpGte:
			return cmp >= 0
		case OpLt:
			return cmp < 0
		default:
			return cmp <= 0
		}
	}
	return false
}
