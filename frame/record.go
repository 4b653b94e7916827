// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package frame

import (
	"sort"
	"strings"

	"github.com/diffeo/go-framestore/document"
)

// Record is one frame of a video sample: an open bag of named fields
// plus the frame number that identifies it within its sample.  *Frame
// is the plain variant; *FrameView is the restricted variant a
// filtered cache materializes.  Field names with a leading underscore
// are system-managed and excluded from Fields and Merge.
type Record interface {
	// Number returns the frame number, or 0 for a record that has
	// not been staged into a cache yet.
	Number() int

	// ID returns the record's store id.  The second return is
	// false until the record has been persisted.
	ID() (document.ID, bool)

	// Backed reports whether the record corresponds to a stored
	// document, as opposed to one that exists only in memory.
	Backed() bool

	// Get returns the named field's value, or nil when the field
	// is absent.
	Get(name string) (interface{}, error)

	// Set assigns the named field.  Names with a leading
	// underscore and the frame number itself are reserved.
	Set(name string, value interface{}) error

	// Fields returns the record's public field names, sorted.
	Fields() []string

	// Data returns a deep copy of the record's full field bag,
	// system fields included.
	Data() document.Document

	// Copy returns a transient deep copy of the record, with no
	// store identity.
	Copy() *Frame

	// Merge copies fields from other into the record.
	Merge(other Record, opts MergeOptions) error

	guts() *frameDoc
}

// MergeOptions controls how Merge combines two records, and how a
// cache-level Merge combines whole frame maps.
type MergeOptions struct {
	// Fields, when non-empty, restricts the merge to these fields.
	Fields []string

	// Omit skips these fields.
	Omit []string

	// SkipNil leaves incoming nil-valued fields unapplied.
	SkipNil bool

	// Overwrite replaces existing values.  When false the merge
	// only fills fields that are absent or nil on the receiver.
	Overwrite bool
}

// frameDoc is the shared guts of Frame and FrameView: the raw field
// bag in store form and whether a stored document backs it.
type frameDoc struct {
	doc    document.Document
	backed bool
}

func (d *frameDoc) guts() *frameDoc { return d }

// Number returns the frame number, or 0 for a record that has not
// been staged into a cache yet.
func (d *frameDoc) Number() int {
	n, _ := document.Int64(d.doc["frame_number"])
	return int(n)
}

// ID returns the record's store id.  The second return is false
// until the record has been persisted.
func (d *frameDoc) ID() (document.ID, bool) {
	return document.IDOf(d.doc["_id"])
}

// Backed reports whether a stored document backs this record.
func (d *frameDoc) Backed() bool { return d.backed }

// Data returns a deep copy of the record's full field bag, system
// fields included.
func (d *frameDoc) Data() document.Document {
	return document.Clone(d.doc)
}

// bind attaches a freshly assigned store id after an insert.
func (d *frameDoc) bind(id document.ID) {
	d.doc["_id"] = id
	d.backed = true
}

// reset strips the record back to a transient shell after its stored
// document was deleted, keeping the user fields.
func (d *frameDoc) reset() {
	delete(d.doc, "_id")
	delete(d.doc, "_created_at")
	delete(d.doc, "_last_modified_at")
	d.backed = false
}

// resync replaces the field bag wholesale with a stored document,
// discarding local edits.
func (d *frameDoc) resync(doc document.Document) {
	d.doc = doc
	d.backed = true
}

func (d *frameDoc) setNumber(n int) { d.doc["frame_number"] = n }

func (d *frameDoc) setSample(id document.ID) { d.doc["_sample_id"] = id }

func (d *frameDoc) get(name string) interface{} { return d.doc[name] }

func (d *frameDoc) set(name string, v interface{}) { d.doc[name] = v }

// publicFields returns the sorted public field names present in the
// bag, optionally filtered by a visibility predicate.  The frame
// number is identity, not data, and is not listed.
func (d *frameDoc) publicFields(visible func(string) bool) []string {
	names := make([]string, 0, len(d.doc))
	for name := range d.doc {
		if name == "frame_number" || strings.HasPrefix(name, "_") {
			continue
		}
		if visible != nil && !visible(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// copyTransient builds a *Frame from the bag with the store identity
// and sample binding stripped.
func (d *frameDoc) copyTransient() *Frame {
	doc := document.Clone(d.doc)
	delete(doc, "_id")
	delete(doc, "_sample_id")
	delete(doc, "_created_at")
	delete(doc, "_last_modified_at")
	return &Frame{frameDoc{doc: doc}}
}

// checkWritable rejects writes to reserved field names.  The frame
// number is only ever assigned through the cache key.
func checkWritable(name string) error {
	if name == "" || name == "frame_number" || strings.HasPrefix(name, "_") {
		return ReservedFieldError{Field: name}
	}
	return nil
}

// Frame is a plain frame record.
type Frame struct {
	frameDoc
}

// NewFrame creates an empty transient frame.  It acquires a frame
// number when it is staged into a cache.
func NewFrame() *Frame {
	return &Frame{frameDoc{doc: document.Document{}}}
}

// FromDocument wraps a raw field bag in a Frame.  The bag is deep
// copied; the frame counts as backed if the bag carries a store id.
func FromDocument(doc document.Document) *Frame {
	c := document.Clone(doc)
	if c == nil {
		c = document.Document{}
	}
	_, backed := document.IDOf(c["_id"])
	return &Frame{frameDoc{doc: c, backed: backed}}
}

// Get returns the named field's value, or nil when the field is
// absent.
func (f *Frame) Get(name string) (interface{}, error) {
	return f.get(name), nil
}

// Set assigns the named field.
func (f *Frame) Set(name string, value interface{}) error {
	if err := checkWritable(name); err != nil {
		return err
	}
	f.set(name, value)
	return nil
}

// Fields returns the frame's public field names, sorted.
func (f *Frame) Fields() []string {
	return f.publicFields(nil)
}

// Copy returns a transient deep copy of the frame.
func (f *Frame) Copy() *Frame {
	return f.copyTransient()
}

// Merge copies fields from other into the frame.
func (f *Frame) Merge(other Record, opts MergeOptions) error {
	return mergeRecord(f, other, opts)
}

// FrameView is a frame record materialized through a filtered or
// projected view of its sample's frames.  Reads and writes outside
// the view's field selection fail with FieldAccessError; array fields
// the view filters hold only the matching elements.
type FrameView struct {
	frameDoc
	sel  map[string]bool // nil when the view selects every field
	excl map[string]bool
}

// visible reports whether the view exposes the named public field.
// System fields and the frame number are always visible.
func (f *FrameView) visible(name string) bool {
	if name == "frame_number" || strings.HasPrefix(name, "_") {
		return true
	}
	if f.sel != nil && !f.sel[name] {
		return false
	}
	return !f.excl[name]
}

// Get returns the named field's value.  Fields outside the view's
// selection fail with FieldAccessError even when absent.
func (f *FrameView) Get(name string) (interface{}, error) {
	if !f.visible(name) {
		return nil, FieldAccessError{Field: name}
	}
	return f.get(name), nil
}

// Set assigns the named field, if the view exposes it.
func (f *FrameView) Set(name string, value interface{}) error {
	if err := checkWritable(name); err != nil {
		return err
	}
	if !f.visible(name) {
		return FieldAccessError{Field: name}
	}
	f.set(name, value)
	return nil
}

// Fields returns the public field names the view exposes, sorted.
func (f *FrameView) Fields() []string {
	return f.publicFields(f.visible)
}

// Copy returns a transient plain Frame holding the view-visible
// fields.
func (f *FrameView) Copy() *Frame {
	return f.copyTransient()
}

// Merge copies fields from other into the view record.  Merging a
// field the view does not expose fails with FieldAccessError.
func (f *FrameView) Merge(other Record, opts MergeOptions) error {
	return mergeRecord(f, other, opts)
}

// mergeRecord copies public fields from src into dst per opts.  The
// frame number never merges; it is identity, not data.  Values are
// deep copied so later edits to src do not leak into dst.
func mergeRecord(dst, src Record, opts MergeOptions) error {
	if src == nil {
		return UnsupportedRecordError{}
	}
	only := stringSet(opts.Fields)
	omit := stringSet(opts.Omit)
	for _, name := range src.Fields() {
		if only != nil && !only[name] {
			continue
		}
		if omit[name] {
			continue
		}
		v, err := src.Get(name)
		if err != nil {
			return err
		}
		if v == nil && opts.SkipNil {
			continue
		}
		if !opts.Overwrite {
			cur, err := dst.Get(name)
			if err != nil {
				return err
			}
			if cur != nil {
				continue
			}
		}
		if err := dst.Set(name, document.CloneValue(v)); err != nil {
			return err
		}
	}
	return nil
}

func stringSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set
}
