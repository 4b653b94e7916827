// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package frame

import (
	"context"

	"github.com/diffeo/go-framestore/document"
)

// Source is a frame cache's view of the sample that owns it.  The
// dataset layer implements it; the cache only ever reaches its parent
// through this surface.
type Source interface {
	// SampleID returns the parent sample's store id.  The second
	// return is false while the sample has never been persisted; a
	// cache with a transient parent works entirely in memory and
	// its Save is a no-op.
	SampleID() (document.ID, bool)

	// Collection returns the dataset's frame collection.  It may
	// return nil while the parent sample is transient.
	Collection() document.Collection

	// Schema returns the frame field schema of the dataset the
	// parent sample belongs to.
	Schema() Schema
}

// Schema tracks the frame fields a dataset has declared.  Writes
// through a cache check incoming field names against it and, when
// expansion is requested, declare new fields from the values they
// carry.
type Schema interface {
	// Has reports whether the named field is declared.
	Has(name string) bool

	// Add declares a new field, inferring whatever the
	// implementation records about it from a sample value.  Adding
	// a field that already exists is a no-op.
	Add(ctx context.Context, name string, value interface{}) error

	// Names returns the declared field names in a stable order.
	Names() []string

	// Reload re-reads the schema from its backing store, picking
	// up fields declared through other holders of the dataset.
	Reload(ctx context.Context) error
}
