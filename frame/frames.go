// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package frame implements a lazily materialized, write-behind cache
// over the frame records of a video sample.
//
// A sample's frames live in a per-dataset document collection, one
// document per frame, keyed by the owning sample's id and a positive
// frame number.  A Frames cache materializes single records from the
// store on demand, stages everything it materializes or is handed,
// and defers all writes until Save, which pushes staged deletions and
// then staged replacements back to the collection as batched writes.
//
// Caches over the same stored sample coordinate through a weak
// registry: a flush folds in the staged records of every other live
// cache of the sample, deletions reset their records' store
// identities, and a reload re-synchronizes their records against the
// store.
//
// A cache built with NewView materializes records through a ViewSpec:
// whole frames can be filtered away, records carry only selected
// fields, and array fields hold only matching elements.  Saving such
// a cache writes back exactly what the view exposes, updating
// filtered array elements in place and merging scalar fields, so
// fields and elements outside the view survive untouched.
//
// A cache is tied to its sample and is not safe for concurrent use.
package frame

import (
	"context"
	"sort"

	"github.com/RoaringBitmap/roaring/roaring64"

	"github.com/diffeo/go-framestore/document"
)

// Frames is the frame cache of one sample.
type Frames struct {
	src  Source
	view *view // nil for the unfiltered cache
	q    queries

	replacements map[int]Record
	deletes      map[int]struct{}
	deleteAll    bool
	registered   bool
}

// New creates the unfiltered frame cache of a sample.  If the sample
// is already stored, the cache registers itself so that flushes and
// reloads through other caches of the same sample reconcile with its
// staged records.
func New(src Source) *Frames {
	f := &Frames{
		src:          src,
		replacements: make(map[int]Record),
		deletes:      make(map[int]struct{}),
	}
	f.q = rawQueries{f}
	f.register()
	return f
}

// NewView creates a frame cache that materializes records through a
// view.  View caches do not register; their staged state is theirs
// alone, though saving one still writes through to the shared store.
func NewView(src Source, spec ViewSpec) *Frames {
	f := &Frames{
		src:          src,
		view:         newView(spec),
		replacements: make(map[int]Record),
		deletes:      make(map[int]struct{}),
	}
	f.q = viewQueries{f}
	return f
}

// Get returns the frame with the given number, materializing it from
// the store on first access and staging it as pending.  A number the
// store does not have, or that a staged delete masks, synthesizes an
// empty record linked to the sample, so callers populate new frames
// by getting one and setting fields.  Until a flush or reload clears
// the staged state, repeated gets of one number return the same
// record instance.
func (f *Frames) Get(ctx context.Context, n int) (Record, error) {
	if n < 1 {
		return nil, InvalidNumberError{Number: n}
	}
	if rec, ok := f.replacements[n]; ok {
		return rec, nil
	}
	sid, backed := f.src.SampleID()
	var doc document.Document
	if backed && !f.deleteAll {
		if _, deleted := f.deletes[n]; !deleted {
			var err error
			doc, err = f.q.findOne(ctx, sid, n)
			if err != nil && err != document.ErrNotFound {
				return nil, err
			}
		}
	}
	fromStore := doc != nil
	if !fromStore {
		doc = shell(sid, backed, n)
	}
	rec := f.q.materialize(doc, fromStore)
	f.stage(n, rec)
	return rec, nil
}

// Set stages rec as frame n, declaring any fields the dataset's frame
// schema does not know yet.
func (f *Frames) Set(ctx context.Context, n int, rec Record) error {
	return f.Add(ctx, n, rec, true)
}

// Add stages rec as frame n.  On a stored sample the incoming
// record's fields are copied onto a fresh record linked to the
// sample, so the staged object is never the caller's; on a transient
// sample a transient incoming record is adopted as is.  Fields the
// schema does not declare are declared when expandSchema is set and
// rejected with SchemaError otherwise.
func (f *Frames) Add(ctx context.Context, n int, rec Record, expandSchema bool) error {
	if n < 1 {
		return InvalidNumberError{Number: n}
	}
	if err := f.checkVariant(rec); err != nil {
		return err
	}
	sid, backed := f.src.SampleID()

	if f.view == nil && !backed {
		adopted := rec
		if rec.guts().backed {
			adopted = rec.Copy()
		}
		if err := f.checkSchema(ctx, adopted, nil, expandSchema); err != nil {
			return err
		}
		adopted.guts().setNumber(n)
		f.stage(n, adopted)
		return nil
	}

	fresh := f.q.materialize(shell(sid, backed, n), false)
	if err := f.copyFields(ctx, fresh, rec, expandSchema); err != nil {
		return err
	}
	f.stage(n, fresh)
	return nil
}

// Delete stages frame n for deletion.  Any staged replacement for n
// is discarded; on a stored sample the stored document goes away at
// the next Save.  Deleting a number the sample does not have is a
// no-op.
func (f *Frames) Delete(n int) {
	delete(f.replacements, n)
	if _, backed := f.src.SampleID(); backed {
		f.deletes[n] = struct{}{}
	}
}

// Clear discards every staged record and stages the deletion of all
// of the sample's stored frames.
func (f *Frames) Clear() {
	f.replacements = make(map[int]Record)
	f.deletes = make(map[int]struct{})
	if _, backed := f.src.SampleID(); backed {
		f.deleteAll = true
	}
}

// Has reports whether the sample has frame n, staged or stored,
// without materializing it.
func (f *Frames) Has(ctx context.Context, n int) (bool, error) {
	if n < 1 {
		return false, nil
	}
	if _, ok := f.replacements[n]; ok {
		return true, nil
	}
	sid, backed := f.src.SampleID()
	if !backed || f.deleteAll {
		return false, nil
	}
	if _, deleted := f.deletes[n]; deleted {
		return false, nil
	}
	if _, err := f.q.findOne(ctx, sid, n); err != nil {
		if err == document.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Numbers returns the sample's frame numbers in ascending order,
// staged records included and staged deletions excluded.
func (f *Frames) Numbers(ctx context.Context) ([]int, error) {
	set, err := f.numberSet(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0, set.GetCardinality())
	it := set.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out, nil
}

// Len returns how many frames the sample effectively has.
func (f *Frames) Len(ctx context.Context) (int, error) {
	set, err := f.numberSet(ctx)
	if err != nil {
		return 0, err
	}
	return int(set.GetCardinality()), nil
}

// First returns the sample's first frame in number order, or
// ErrNoFrames when it has none.
func (f *Frames) First(ctx context.Context) (Record, error) {
	it := f.Iter()
	defer it.Close(ctx)
	if !it.Next(ctx) {
		if err := it.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNoFrames
	}
	return it.Record(), nil
}

// Update stages many frames at once, in frame number order.  When
// overwrite is false, numbers the sample already has are left alone.
func (f *Frames) Update(ctx context.Context, frames map[int]Record, overwrite, expandSchema bool) error {
	for _, n := range sortedNumbers(frames) {
		if !overwrite {
			has, err := f.Has(ctx, n)
			if err != nil {
				return err
			}
			if has {
				continue
			}
		}
		if err := f.Add(ctx, n, frames[n], expandSchema); err != nil {
			return err
		}
	}
	return nil
}

// Merge folds many frames into the cache, in frame number order:
// numbers the sample already has merge field by field per opts, new
// numbers stage whole records.
func (f *Frames) Merge(ctx context.Context, frames map[int]Record, opts MergeOptions, expandSchema bool) error {
	for _, n := range sortedNumbers(frames) {
		src := frames[n]
		if err := f.checkVariant(src); err != nil {
			return err
		}
		has, err := f.Has(ctx, n)
		if err != nil {
			return err
		}
		if !has {
			if err := f.Add(ctx, n, src, expandSchema); err != nil {
				return err
			}
			continue
		}
		dst, err := f.Get(ctx, n)
		if err != nil {
			return err
		}
		if err := f.checkSchema(ctx, src, &opts, expandSchema); err != nil {
			return err
		}
		if err := dst.Merge(src, opts); err != nil {
			return err
		}
	}
	return nil
}

// Save pushes the staged state to the store: first staged deletions,
// then staged replacements, each as one batched write.  A failed
// flush leaves the staged state in place, though the store may
// already hold a prefix of the batch; callers that need to reconcile
// after a write error should Reload.  Saving a cache whose sample was
// never stored is a no-op.
func (f *Frames) Save(ctx context.Context) error {
	sid, backed := f.src.SampleID()
	if !backed {
		return nil
	}
	f.register()
	if err := f.saveDeletions(ctx, sid); err != nil {
		return err
	}
	return f.q.flush(ctx, sid)
}

// Reload discards the cache's staged state.  A registered cache first
// re-synchronizes the staged records of every live cache of the
// sample against the store, so records callers still hold flip back
// to stored truth instead of going stale; records whose stored
// documents are gone reset to transient shells.  With hard set the
// frame schema is re-read too.  A view cache only discards its own
// staged state.
func (f *Frames) Reload(ctx context.Context, hard bool) error {
	sid, backed := f.src.SampleID()
	if backed && f.view == nil {
		if hard {
			if schema := f.src.Schema(); schema != nil {
				if err := schema.Reload(ctx); err != nil {
					return err
				}
			}
		}
		for _, peer := range f.peers(sid) {
			if err := peer.resyncStaged(ctx, sid); err != nil {
				return err
			}
		}
	}
	f.replacements = make(map[int]Record)
	f.deletes = make(map[int]struct{})
	f.deleteAll = false
	return nil
}

// shell builds the minimal document of a frame that does not exist
// yet: the parent link and the number.
func shell(sid document.ID, backed bool, n int) document.Document {
	doc := document.Document{"frame_number": n}
	if backed {
		doc["_sample_id"] = sid
	}
	return doc
}

// stage records rec as the pending replacement for n.  Staging wins
// over a staged delete of the same number; since the delete could
// have been masking a stored document, the record is marked backed so
// it flushes as a replacement instead of colliding with the stale
// document on insert.
func (f *Frames) stage(n int, rec Record) {
	if _, deleted := f.deletes[n]; deleted {
		delete(f.deletes, n)
		rec.guts().backed = true
	}
	f.replacements[n] = rec
}

// checkVariant validates that rec is one of the two record variants.
func (f *Frames) checkVariant(rec Record) error {
	switch rec.(type) {
	case *Frame, *FrameView:
		return nil
	}
	return UnsupportedRecordError{Record: rec}
}

// copyFields copies src's public fields onto dst, declaring each
// against the frame schema.
func (f *Frames) copyFields(ctx context.Context, dst, src Record, expand bool) error {
	for _, name := range src.Fields() {
		if name == "frame_number" {
			continue
		}
		v, err := src.Get(name)
		if err != nil {
			return err
		}
		if err := f.declare(ctx, name, v, expand); err != nil {
			return err
		}
		if err := dst.Set(name, document.CloneValue(v)); err != nil {
			return err
		}
	}
	return nil
}

// checkSchema declares every public field of rec, or fails with
// SchemaError when expansion is off.  A non-nil opts restricts the
// sweep to the fields a merge would actually apply.
func (f *Frames) checkSchema(ctx context.Context, rec Record, opts *MergeOptions, expand bool) error {
	var only, omit map[string]bool
	if opts != nil {
		only = stringSet(opts.Fields)
		omit = stringSet(opts.Omit)
	}
	for _, name := range rec.Fields() {
		if name == "frame_number" {
			continue
		}
		if only != nil && !only[name] {
			continue
		}
		if omit[name] {
			continue
		}
		v, err := rec.Get(name)
		if err != nil {
			return err
		}
		if err := f.declare(ctx, name, v, expand); err != nil {
			return err
		}
	}
	return nil
}

// declare checks one field name against the schema, declaring it when
// expansion is allowed.
func (f *Frames) declare(ctx context.Context, name string, v interface{}, expand bool) error {
	schema := f.src.Schema()
	if schema == nil || schema.Has(name) {
		return nil
	}
	if !expand {
		return SchemaError{Field: name}
	}
	return schema.Add(ctx, name, v)
}

// declareFields declares any of rec's fields the schema does not know
// yet.  Fields acquired by editing a staged record after it was
// staged still reach the schema this way before they persist.
func (f *Frames) declareFields(ctx context.Context, rec Record) error {
	schema := f.src.Schema()
	if schema == nil {
		return nil
	}
	for _, name := range rec.Fields() {
		if name == "frame_number" || schema.Has(name) {
			continue
		}
		v, err := rec.Get(name)
		if err != nil {
			return err
		}
		if err := schema.Add(ctx, name, v); err != nil {
			return err
		}
	}
	return nil
}

// numberSet computes the effective frame numbers: staged replacements
// unioned with the store's numbers, minus staged deletions.
func (f *Frames) numberSet(ctx context.Context) (*roaring64.Bitmap, error) {
	set := roaring64.New()
	for n := range f.replacements {
		set.Add(uint64(n))
	}
	sid, backed := f.src.SampleID()
	if !backed || f.deleteAll {
		return set, nil
	}
	stored, err := f.q.numbers(ctx, sid)
	if err != nil {
		return nil, err
	}
	if len(f.deletes) > 0 {
		deleted := roaring64.New()
		for n := range f.deletes {
			deleted.Add(uint64(n))
		}
		stored.AndNot(deleted)
	}
	set.Or(stored)
	return set, nil
}

// saveDeletions is the first flush phase: staged deletions leave the
// store, and matching records in every live cache of the sample reset
// to transient shells.
func (f *Frames) saveDeletions(ctx context.Context, sid document.ID) error {
	coll := f.src.Collection()
	switch {
	case f.deleteAll:
		filter := document.Filter{"_sample_id": document.Eq(sid)}
		if _, err := coll.DeleteMany(ctx, filter); err != nil {
			return err
		}
		f.resetPeers(sid, nil)
		f.deleteAll = false
		f.deletes = make(map[int]struct{})

	case len(f.deletes) > 0:
		nums := make([]int, 0, len(f.deletes))
		for n := range f.deletes {
			nums = append(nums, n)
		}
		sort.Ints(nums)
		ops := make([]document.WriteOp, 0, len(nums))
		reset := make(map[int]struct{}, len(nums))
		for _, n := range nums {
			ops = append(ops, document.DeleteOne{Filter: document.Filter{
				"_sample_id":   document.Eq(sid),
				"frame_number": document.Eq(n),
			}})
			reset[n] = struct{}{}
		}
		if err := coll.BulkWrite(ctx, ops); err != nil {
			return err
		}
		f.resetPeers(sid, reset)
		f.deletes = make(map[int]struct{})
	}
	return nil
}

// resetPeers strips the store identity from staged records whose
// numbers were just deleted, in every live cache of the sample.  A
// nil set means every number.
func (f *Frames) resetPeers(sid document.ID, nums map[int]struct{}) {
	for _, peer := range f.peers(sid) {
		for n, rec := range peer.replacements {
			if nums != nil {
				if _, ok := nums[n]; !ok {
					continue
				}
			}
			rec.guts().reset()
		}
	}
}

// resyncStaged re-reads every staged record from the store,
// discarding local edits.
func (f *Frames) resyncStaged(ctx context.Context, sid document.ID) error {
	for n, rec := range f.replacements {
		doc, err := f.q.findOne(ctx, sid, n)
		if err == document.ErrNotFound {
			rec.guts().reset()
			continue
		}
		if err != nil {
			return err
		}
		rec.guts().resync(doc)
	}
	return nil
}

// flushUnion is the second flush phase for unfiltered writes: union
// holds the records to persist, keyed by number.  Records never
// persisted insert as one batch and learn their store ids; previously
// persisted ones replace their stored documents by sample and number.
// On success only f's own staged map clears; peers keep theirs, now
// bound to store identities.
func (f *Frames) flushUnion(ctx context.Context, sid document.ID, union map[int]Record) error {
	if len(union) == 0 {
		f.replacements = make(map[int]Record)
		return nil
	}
	nums := make([]int, 0, len(union))
	for n := range union {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	var inserts []Record
	var docs []document.Document
	var replaces []document.WriteOp
	for _, n := range nums {
		rec := union[n]
		g := rec.guts()
		g.setSample(sid)
		g.setNumber(n)
		if err := f.declareFields(ctx, rec); err != nil {
			return err
		}
		if g.backed {
			replaces = append(replaces, document.ReplaceOne{
				Filter: document.Filter{
					"_sample_id":   document.Eq(sid),
					"frame_number": document.Eq(n),
				},
				Replacement: g.doc,
				Upsert:      true,
			})
		} else {
			inserts = append(inserts, rec)
			docs = append(docs, g.doc)
		}
	}
	if len(docs) > 0 {
		ids, err := f.src.Collection().InsertMany(ctx, docs)
		if err != nil {
			return err
		}
		for i, rec := range inserts {
			rec.guts().bind(ids[i])
		}
	}
	if len(replaces) > 0 {
		if err := f.src.Collection().BulkWrite(ctx, replaces); err != nil {
			return err
		}
	}
	f.replacements = make(map[int]Record)
	return nil
}

func sortedNumbers(frames map[int]Record) []int {
	nums := make([]int, 0, len(frames))
	for n := range frames {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}
