// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package frame

import (
	"errors"
	"fmt"
)

// ErrNoFrames is returned by First when a sample has no frames at
// all, staged or stored.
var ErrNoFrames = errors.New("sample has no frames")

// InvalidNumberError is returned when a frame number is not a
// positive integer.  Frame numbers start at 1.
type InvalidNumberError struct {
	Number int
}

func (e InvalidNumberError) Error() string {
	return fmt.Sprintf("invalid frame number %d: frame numbers are positive integers", e.Number)
}

// UnsupportedRecordError is returned when something that is not a
// frame record is written into a cache, a nil record included.
type UnsupportedRecordError struct {
	Record Record
}

func (e UnsupportedRecordError) Error() string {
	if e.Record == nil {
		return "unsupported frame record: <nil>"
	}
	return fmt.Sprintf("unsupported frame record type %T", e.Record)
}

// FieldAccessError is returned by view records when a field outside
// the view's selection is read or written.
type FieldAccessError struct {
	Field string
}

func (e FieldAccessError) Error() string {
	return fmt.Sprintf("field %q is not part of this view", e.Field)
}

// ReservedFieldError is returned when a write names a field the
// system manages itself: anything with a leading underscore, and the
// frame number, which is only ever assigned through the cache key.
type ReservedFieldError struct {
	Field string
}

func (e ReservedFieldError) Error() string {
	return fmt.Sprintf("field %q is reserved", e.Field)
}

// SchemaError is returned when a write introduces a field the
// dataset's frame schema does not declare and schema expansion was
// not requested.
type SchemaError struct {
	Field string
}

func (e SchemaError) Error() string {
	return fmt.Sprintf("frame field %q does not exist; expand the schema to add it", e.Field)
}
