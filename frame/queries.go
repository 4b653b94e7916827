// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package frame

import (
	"context"
	"sort"

	"github.com/RoaringBitmap/roaring/roaring64"

	"github.com/diffeo/go-framestore/document"
)

// queries is the store-facing side of a cache: how records are looked
// up, scanned, enumerated, materialized, and written back.  The
// unfiltered cache and a filtered view differ only here.
type queries interface {
	// findOne fetches the document of one frame, or ErrNotFound.
	findOne(ctx context.Context, sid document.ID, n int) (document.Document, error)

	// scan opens a cursor over the sample's stored frames in
	// ascending frame number order.
	scan(ctx context.Context, sid document.ID) (document.Cursor, error)

	// numbers gathers the sample's stored frame numbers.
	numbers(ctx context.Context, sid document.ID) (*roaring64.Bitmap, error)

	// materialize wraps a fetched or synthesized document in the
	// record variant this cache produces.
	materialize(doc document.Document, backed bool) Record

	// flush is the replacement phase of Save.
	flush(ctx context.Context, sid document.ID) error
}

// rawQueries implements the unfiltered cache's store access: plain
// finds by sample id, plus a bulk insert-or-replace flush over the
// union of every live cache's staged records.
type rawQueries struct {
	f *Frames
}

func (q rawQueries) findOne(ctx context.Context, sid document.ID, n int) (document.Document, error) {
	return q.f.src.Collection().FindOne(ctx, document.Filter{
		"_sample_id":   document.Eq(sid),
		"frame_number": document.Eq(n),
	})
}

func (q rawQueries) scan(ctx context.Context, sid document.ID) (document.Cursor, error) {
	return q.f.src.Collection().Find(ctx,
		document.Filter{"_sample_id": document.Eq(sid)},
		document.Sort{Field: "frame_number"},
	)
}

func (q rawQueries) numbers(ctx context.Context, sid document.ID) (*roaring64.Bitmap, error) {
	return collectNumbers(ctx, q.f.src.Collection(), document.Pipeline{
		document.Match(document.Filter{"_sample_id": document.Eq(sid)}),
		document.Collect("frame_number"),
	})
}

func (q rawQueries) materialize(doc document.Document, backed bool) Record {
	return &Frame{frameDoc{doc: doc, backed: backed}}
}

func (q rawQueries) flush(ctx context.Context, sid document.ID) error {
	f := q.f
	union := make(map[int]Record, len(f.replacements))
	for _, sib := range f.siblings(sid) {
		for n, rec := range sib.replacements {
			union[n] = rec
		}
	}
	for n, rec := range f.replacements {
		union[n] = rec
	}
	return f.flushUnion(ctx, sid, union)
}

// viewQueries implements a view cache's store access.  Views that
// cannot drop whole frames or elements delegate reads to the plain
// finds; anything else runs the aggregation pipeline.  The flush
// writes back only what the view exposes.
type viewQueries struct {
	f *Frames
}

func (q viewQueries) findOne(ctx context.Context, sid document.ID, n int) (document.Document, error) {
	v := q.f.view
	if !v.needsPipeline() {
		return rawQueries{q.f}.findOne(ctx, sid, n)
	}
	pipe := document.Pipeline{document.Match(v.match(sid, document.Filter{
		"frame_number": document.Eq(n),
	}))}
	pipe = v.appendStages(pipe)
	cur, err := q.f.src.Collection().Aggregate(ctx, pipe)
	if err != nil {
		return nil, err
	}
	return firstDoc(ctx, cur)
}

func (q viewQueries) scan(ctx context.Context, sid document.ID) (document.Cursor, error) {
	v := q.f.view
	if !v.needsPipeline() {
		return rawQueries{q.f}.scan(ctx, sid)
	}
	pipe := document.Pipeline{document.Match(v.match(sid, nil))}
	pipe = v.appendStages(pipe)
	pipe = append(pipe, document.SortBy(document.Sort{Field: "frame_number"}))
	return q.f.src.Collection().Aggregate(ctx, pipe)
}

func (q viewQueries) numbers(ctx context.Context, sid document.ID) (*roaring64.Bitmap, error) {
	v := q.f.view
	if !v.filtersFrames() {
		return rawQueries{q.f}.numbers(ctx, sid)
	}
	return collectNumbers(ctx, q.f.src.Collection(), document.Pipeline{
		document.Match(v.match(sid, nil)),
		document.Collect("frame_number"),
	})
}

func (q viewQueries) materialize(doc document.Document, backed bool) Record {
	return q.f.view.newRecord(doc, backed)
}

func (q viewQueries) flush(ctx context.Context, sid document.ID) error {
	f := q.f
	v := f.view
	if v.allFields() {
		union := make(map[int]Record, len(f.replacements))
		for n, rec := range f.replacements {
			union[n] = rec
		}
		return f.flushUnion(ctx, sid, union)
	}

	nums := make([]int, 0, len(f.replacements))
	for n := range f.replacements {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	var ops []document.WriteOp
	for _, n := range nums {
		rec := f.replacements[n]
		g := rec.guts()
		g.setSample(sid)
		g.setNumber(n)
		if err := f.declareFields(ctx, rec); err != nil {
			return err
		}
		base := document.Filter{
			"_sample_id":   document.Eq(sid),
			"frame_number": document.Eq(n),
		}
		for _, path := range v.paths {
			ops = append(ops, elemOps(g.doc, base, path)...)
		}
		rest := make(document.Document)
		for name, val := range g.doc {
			switch {
			case name == "_id" || name == "_sample_id" || name == "frame_number":
			case name == "_created_at" || name == "_last_modified_at":
			case v.roots[name]:
				// written element by element above
			default:
				rest[name] = document.CloneValue(val)
			}
		}
		ops = append(ops, document.UpdateOne{Filter: base, Set: rest, Upsert: true})
	}
	if len(ops) > 0 {
		if err := f.src.Collection().BulkWrite(ctx, ops); err != nil {
			return err
		}
	}
	f.replacements = make(map[int]Record)
	return nil
}

// elemOps builds one positional update per element of the filtered
// array at path.  Elements without an id cannot be addressed in the
// stored array and are skipped; so is a path the record does not
// carry.
func elemOps(doc document.Document, base document.Filter, path string) []document.WriteOp {
	v, ok := document.Lookup(doc, path)
	if !ok {
		return nil
	}
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var ops []document.WriteOp
	for _, elem := range arr {
		var em document.Document
		switch m := elem.(type) {
		case document.Document:
			em = m
		case map[string]interface{}:
			em = document.Document(m)
		default:
			continue
		}
		id, ok := document.IDOf(em["_id"])
		if !ok {
			continue
		}
		filter := make(document.Filter, len(base)+1)
		for k, c := range base {
			filter[k] = c
		}
		filter[path+"._id"] = document.Eq(id)
		ops = append(ops, document.UpdateOne{
			Filter: filter,
			Set:    document.Document{path + ".$": document.CloneValue(elem)},
		})
	}
	return ops
}

// firstDoc drains cur for its first document, or ErrNotFound.
func firstDoc(ctx context.Context, cur document.Cursor) (document.Document, error) {
	var doc document.Document
	found := false
	if cur.Next(ctx) {
		if err := cur.Decode(&doc); err != nil {
			cur.Close(ctx)
			return nil, err
		}
		found = true
	}
	if err := cur.Err(); err != nil {
		cur.Close(ctx)
		return nil, err
	}
	if err := cur.Close(ctx); err != nil {
		return nil, err
	}
	if !found {
		return nil, document.ErrNotFound
	}
	return doc, nil
}

// collectNumbers runs a pipeline ending in a Collect over the frame
// number field and gathers the values into a bitmap.
func collectNumbers(ctx context.Context, coll document.Collection, pipe document.Pipeline) (*roaring64.Bitmap, error) {
	cur, err := coll.Aggregate(ctx, pipe)
	if err != nil {
		return nil, err
	}
	set := roaring64.New()
	for cur.Next(ctx) {
		var doc document.Document
		if err := cur.Decode(&doc); err != nil {
			cur.Close(ctx)
			return nil, err
		}
		values, _ := doc["values"].([]interface{})
		for _, v := range values {
			if n, ok := document.Int64(v); ok && n > 0 {
				set.Add(uint64(n))
			}
		}
	}
	if err := cur.Err(); err != nil {
		cur.Close(ctx)
		return nil, err
	}
	if err := cur.Close(ctx); err != nil {
		return nil, err
	}
	return set, nil
}
