// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package frame

import (
	"context"
	"sort"

	"github.com/diffeo/go-framestore/document"
)

// Iter returns an iterator over the sample's frames in ascending
// frame number order, merging staged records with stored ones.
// Stored records the iteration touches are staged as pending, exactly
// as if Get had materialized them.  The staged numbers are
// snapshotted up front; mutating the cache while iterating is not
// supported.  Every call returns a fresh iteration from the first
// frame.
func (f *Frames) Iter() *Iter {
	staged := make([]int, 0, len(f.replacements))
	for n := range f.replacements {
		staged = append(staged, n)
	}
	sort.Ints(staged)
	return &Iter{f: f, staged: staged}
}

// Iter is an in-order iteration over a cache's frames.  Use it like a
// document cursor:
//
//	it := frames.Iter()
//	for it.Next(ctx) {
//		rec := it.Record()
//		...
//	}
//	if err := it.Err(); err != nil {
//		...
//	}
//	it.Close(ctx)
type Iter struct {
	f      *Frames
	staged []int
	si     int

	opened bool
	cur    document.Cursor
	ahead  document.Document
	aheadN int

	rec Record
	n   int
	err error
}

// Next advances to the next frame in number order.  It reports false
// once both the staged records and the store are exhausted, or when
// an error stops the iteration.
func (it *Iter) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	f := it.f
	if !it.opened {
		it.opened = true
		sid, backed := f.src.SampleID()
		if backed && !f.deleteAll {
			cur, err := f.q.scan(ctx, sid)
			if err != nil {
				it.err = err
				return false
			}
			it.cur = cur
		}
	}

	for {
		if it.ahead == nil && it.cur != nil {
			it.loadAhead(ctx)
			if it.err != nil {
				return false
			}
		}
		hasStored := it.ahead != nil
		hasStaged := it.si < len(it.staged)

		switch {
		case !hasStored && !hasStaged:
			return false

		case hasStaged && (!hasStored || it.staged[it.si] <= it.aheadN):
			// A staged record shadows the stored document with
			// the same number.
			n := it.staged[it.si]
			it.si++
			if hasStored && it.aheadN == n {
				it.ahead = nil
			}
			rec, ok := f.replacements[n]
			if !ok {
				continue
			}
			it.rec, it.n = rec, n
			return true

		default:
			n := it.aheadN
			doc := it.ahead
			it.ahead = nil
			if _, deleted := f.deletes[n]; deleted {
				continue
			}
			if rec, ok := f.replacements[n]; ok {
				// Staged behind our back, after the snapshot.
				it.rec, it.n = rec, n
				return true
			}
			rec := f.q.materialize(doc, true)
			f.stage(n, rec)
			it.rec, it.n = rec, n
			return true
		}
	}
}

// loadAhead pulls the next stored document into the lookahead slot,
// closing the cursor once it drains.
func (it *Iter) loadAhead(ctx context.Context) {
	for it.cur.Next(ctx) {
		var doc document.Document
		if err := it.cur.Decode(&doc); err != nil {
			it.err = err
			return
		}
		n, ok := document.Int64(doc["frame_number"])
		if !ok || n < 1 {
			continue
		}
		it.ahead = doc
		it.aheadN = int(n)
		return
	}
	if err := it.cur.Err(); err != nil {
		it.err = err
	}
	if err := it.cur.Close(ctx); err != nil && it.err == nil {
		it.err = err
	}
	it.cur = nil
}

// Record returns the record Next advanced to.
func (it *Iter) Record() Record { return it.rec }

// Number returns the frame number Next advanced to.
func (it *Iter) Number() int { return it.n }

// Err returns the first error the iteration hit, if any.
func (it *Iter) Err() error { return it.err }

// Close releases the underlying store cursor.  It is safe to call at
// any point and more than once.
func (it *Iter) Close(ctx context.Context) error {
	if it.cur == nil {
		return nil
	}
	err := it.cur.Close(ctx)
	it.cur = nil
	return err
}
