// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package document

import "context"

// SliceCursor adapts an already-materialized result slice to the
// Cursor interface.  The in-process backends produce these; they are
// also convenient in tests.
type SliceCursor struct {
	docs []Document
	pos  int
}

// NewSliceCursor returns a Cursor yielding docs in order.
func NewSliceCursor(docs []Document) *SliceCursor {
	return &SliceCursor{docs: docs}
}

// Next advances the cursor.
func (c *SliceCursor) Next(ctx context.Context) bool {
	if c.pos >= len(c.docs) {
		return false
	}
	c.pos++
	return true
}

// Decode stores the current document into *doc.
func (c *SliceCursor) Decode(doc *Document) error {
	*doc = c.docs[c.pos-1]
	return nil
}

// Err always reports nil; a materialized result set cannot fail
// mid-iteration.
func (c *SliceCursor) Err() error { return nil }

// Close is a no-op.
func (c *SliceCursor) Close(ctx context.Context) error { return nil }
