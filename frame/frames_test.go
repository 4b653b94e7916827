// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package frame_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/suite"

	"github.com/diffeo/go-framestore/document"
	"github.com/diffeo/go-framestore/frame"
	"github.com/diffeo/go-framestore/memstore"
)

// testSource is a hand-rolled frame.Source: a fixed sample id over a
// fixed collection, flipping to backed when a test says so.
type testSource struct {
	id     document.ID
	backed bool
	coll   document.Collection
	schema frame.Schema
}

func (s *testSource) SampleID() (document.ID, bool)   { return s.id, s.backed }
func (s *testSource) Collection() document.Collection { return s.coll }
func (s *testSource) Schema() frame.Schema            { return s.schema }

// testSchema tracks declared fields in memory and counts reloads.
type testSchema struct {
	fields  map[string]bool
	reloads int
}

func newTestSchema(names ...string) *testSchema {
	m := &testSchema{fields: make(map[string]bool)}
	for _, name := range names {
		m.fields[name] = true
	}
	return m
}

func (m *testSchema) Has(name string) bool { return m.fields[name] }

func (m *testSchema) Add(ctx context.Context, name string, v interface{}) error {
	m.fields[name] = true
	return nil
}

func (m *testSchema) Names() []string {
	names := make([]string, 0, len(m.fields))
	for name := range m.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *testSchema) Reload(ctx context.Context) error {
	m.reloads++
	return nil
}

type Suite struct {
	suite.Suite

	ctx   context.Context
	clk   *clock.Mock
	store document.Store
	coll  document.Collection
}

func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	s.clk = clock.NewMock()
	s.store = memstore.NewWithClock(s.clk)
	s.coll = s.store.Collection("frames.test")
	s.Require().NoError(s.coll.EnsureKeyIndex(s.ctx, "_sample_id", "frame_number"))
}

func TestFrames(t *testing.T) {
	suite.Run(t, &Suite{})
}

// source builds a backed test source.  Sample ids embed the test name
// so caches registered by other tests never alias ours.
func (s *Suite) source() *testSource {
	return &testSource{
		id:     document.ID("sample-" + s.T().Name()),
		backed: true,
		coll:   s.coll,
		schema: newTestSchema(),
	}
}

func (s *Suite) transientSource() *testSource {
	src := s.source()
	src.backed = false
	return src
}

// seed inserts one frame document directly into the collection.
func (s *Suite) seed(src *testSource, n int, fields document.Document) document.ID {
	doc := document.Document{"_sample_id": src.id, "frame_number": n}
	for k, v := range fields {
		doc[k] = v
	}
	ids, err := s.coll.InsertMany(s.ctx, []document.Document{doc})
	s.Require().NoError(err)
	return ids[0]
}

// stored fetches one frame document straight from the collection.
func (s *Suite) stored(src *testSource, n int) document.Document {
	doc, err := s.coll.FindOne(s.ctx, document.Filter{
		"_sample_id":   document.Eq(src.id),
		"frame_number": document.Eq(n),
	})
	s.Require().NoError(err)
	return doc
}

// storedCount counts the sample's frame documents in the collection.
func (s *Suite) storedCount(src *testSource) int {
	cur, err := s.coll.Find(s.ctx, document.Filter{"_sample_id": document.Eq(src.id)})
	s.Require().NoError(err)
	count := 0
	for cur.Next(s.ctx) {
		count++
	}
	s.Require().NoError(cur.Err())
	s.Require().NoError(cur.Close(s.ctx))
	return count
}

func (s *Suite) field(rec frame.Record, name string) interface{} {
	v, err := rec.Get(name)
	s.Require().NoError(err)
	return v
}

func (s *Suite) setField(rec frame.Record, name string, v interface{}) {
	s.Require().NoError(rec.Set(name, v))
}

func (s *Suite) TestGetInvalidNumber() {
	frames := frame.New(s.transientSource())
	_, err := frames.Get(s.ctx, 0)
	s.Equal(frame.InvalidNumberError{Number: 0}, err)
	_, err = frames.Get(s.ctx, -3)
	s.Equal(frame.InvalidNumberError{Number: -3}, err)
	err = frames.Set(s.ctx, 0, frame.NewFrame())
	s.Equal(frame.InvalidNumberError{Number: 0}, err)
}

func (s *Suite) TestGetSynthesizesOnTransientParent() {
	frames := frame.New(s.transientSource())

	rec, err := frames.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(1, rec.Number())
	s.False(rec.Backed())
	_, ok := rec.ID()
	s.False(ok)

	s.setField(rec, "label", "cat")
	again, err := frames.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.Same(rec, again)

	nums, err := frames.Numbers(s.ctx)
	s.Require().NoError(err)
	s.Equal([]int{1}, nums)

	// The parent was never stored, so saving writes nothing.
	s.Require().NoError(frames.Save(s.ctx))
	s.Equal(0, s.storedCount(s.transientSource()))
}

func (s *Suite) TestGetMaterializesAndStages() {
	src := s.source()
	s.seed(src, 1, document.Document{"label": "cat"})
	frames := frame.New(src)

	rec, err := frames.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal(1, rec.Number())
	s.True(rec.Backed())
	_, ok := rec.ID()
	s.True(ok)
	s.Equal("cat", s.field(rec, "label"))

	s.setField(rec, "label", "lion")
	again, err := frames.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.Same(rec, again)
	s.Equal("lion", s.field(again, "label"))
}

func (s *Suite) TestGetMissingSynthesizes() {
	src := s.source()
	s.seed(src, 1, nil)
	frames := frame.New(src)

	rec, err := frames.Get(s.ctx, 7)
	s.Require().NoError(err)
	s.Equal(7, rec.Number())
	s.False(rec.Backed())
	s.Empty(rec.Fields())

	// The synthesized record counts as a frame from here on.
	nums, err := frames.Numbers(s.ctx)
	s.Require().NoError(err)
	s.Equal([]int{1, 7}, nums)
}

func (s *Suite) TestSetCopiesOnBackedParent() {
	src := s.source()
	frames := frame.New(src)

	rec := frame.NewFrame()
	s.setField(rec, "label", "cat")
	s.Require().NoError(frames.Set(s.ctx, 3, rec))

	staged, err := frames.Get(s.ctx, 3)
	s.Require().NoError(err)
	s.NotSame(rec, staged)
	s.Equal("cat", s.field(staged, "label"))

	// Edits to the caller's record do not leak into the cache.
	s.setField(rec, "label", "dog")
	s.Equal("cat", s.field(staged, "label"))
}

func (s *Suite) TestAddAdoptsOnTransientParent() {
	frames := frame.New(s.transientSource())

	rec := frame.NewFrame()
	s.setField(rec, "label", "cat")
	s.Require().NoError(frames.Add(s.ctx, 2, rec, true))

	staged, err := frames.Get(s.ctx, 2)
	s.Require().NoError(err)
	s.Same(rec, staged)
	s.Equal(2, staged.Number())
}

func (s *Suite) TestAddCopiesBackedRecord() {
	frames := frame.New(s.transientSource())

	src := s.source()
	s.seed(src, 1, document.Document{"label": "cat"})
	other := frame.New(src)
	rec, err := other.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.True(rec.Backed())

	// A record tied to some stored frame is copied, not adopted.
	s.Require().NoError(frames.Add(s.ctx, 5, rec, true))
	staged, err := frames.Get(s.ctx, 5)
	s.Require().NoError(err)
	s.NotSame(rec, staged)
	s.False(staged.Backed())
	_, ok := staged.ID()
	s.False(ok)
	s.Equal("cat", s.field(staged, "label"))
	s.Equal(5, staged.Number())
}

func (s *Suite) TestAddAcceptsViewRecords() {
	src := s.source()
	s.seed(src, 1, document.Document{"label": "cat", "temp": 1})

	viewRec, err := frame.NewView(src, frame.ViewSpec{Select: []string{"label"}}).Get(s.ctx, 1)
	s.Require().NoError(err)

	// A view record carries only its visible fields into the copy.
	frames := frame.New(src)
	s.Require().NoError(frames.Add(s.ctx, 2, viewRec, true))
	staged, err := frames.Get(s.ctx, 2)
	s.Require().NoError(err)
	s.Equal("cat", s.field(staged, "label"))
	s.Nil(s.field(staged, "temp"))

	err = frames.Add(s.ctx, 3, nil, true)
	s.Equal(frame.UnsupportedRecordError{}, err)
}

func (s *Suite) TestAddSchemaEnforcement() {
	src := s.source()
	src.schema = newTestSchema("label")
	frames := frame.New(src)

	rec := frame.NewFrame()
	s.setField(rec, "label", "cat")
	s.setField(rec, "confidence", 0.9)

	err := frames.Add(s.ctx, 1, rec, false)
	s.Equal(frame.SchemaError{Field: "confidence"}, err)

	s.Require().NoError(frames.Add(s.ctx, 1, rec, true))
	s.True(src.schema.Has("confidence"))
}

func (s *Suite) TestDeleteMasksStore() {
	src := s.source()
	s.seed(src, 1, nil)
	s.seed(src, 2, document.Document{"label": "old"})
	s.seed(src, 3, nil)
	frames := frame.New(src)

	frames.Delete(2)

	nums, err := frames.Numbers(s.ctx)
	s.Require().NoError(err)
	s.Equal([]int{1, 3}, nums)
	n, err := frames.Len(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)
	has, err := frames.Has(s.ctx, 2)
	s.Require().NoError(err)
	s.False(has)

	// Getting a deleted number synthesizes a fresh record rather
	// than resurrecting the stored one.
	rec, err := frames.Get(s.ctx, 2)
	s.Require().NoError(err)
	s.Empty(rec.Fields())
	_, ok := rec.ID()
	s.False(ok)
}

func (s *Suite) TestDeleteThenSetThenSave() {
	src := s.source()
	s.seed(src, 2, document.Document{"label": "old", "extra": true})
	frames := frame.New(src)

	frames.Delete(2)
	rec, err := frames.Get(s.ctx, 2)
	s.Require().NoError(err)
	s.setField(rec, "label", "new")
	s.Require().NoError(frames.Save(s.ctx))

	doc := s.stored(src, 2)
	s.Equal("new", doc["label"])
	s.NotContains(doc, "extra")
	s.Equal(1, s.storedCount(src))
}

func (s *Suite) TestClearThenSetThenSave() {
	src := s.source()
	s.seed(src, 1, nil)
	s.seed(src, 2, nil)
	s.seed(src, 3, nil)
	frames := frame.New(src)

	frames.Clear()
	rec := frame.NewFrame()
	s.setField(rec, "label", "only")
	s.Require().NoError(frames.Set(s.ctx, 9, rec))
	s.Require().NoError(frames.Save(s.ctx))

	s.Equal(1, s.storedCount(src))
	doc := s.stored(src, 9)
	s.Equal("only", doc["label"])
}

func (s *Suite) TestNumbersMergeStagedAndStored() {
	src := s.source()
	s.seed(src, 1, nil)
	s.seed(src, 3, nil)
	s.seed(src, 5, nil)
	frames := frame.New(src)

	rec := frame.NewFrame()
	s.Require().NoError(frames.Set(s.ctx, 2, rec))
	frames.Delete(3)

	nums, err := frames.Numbers(s.ctx)
	s.Require().NoError(err)
	s.Equal([]int{1, 2, 5}, nums)
	n, err := frames.Len(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, n)
}

func (s *Suite) TestIterMergesStagedAndStored() {
	src := s.source()
	s.seed(src, 1, document.Document{"label": "one"})
	s.seed(src, 3, nil)
	s.seed(src, 5, document.Document{"label": "five"})
	frames := frame.New(src)

	staged := frame.NewFrame()
	s.setField(staged, "label", "two")
	s.Require().NoError(frames.Set(s.ctx, 2, staged))
	frames.Delete(3)

	var nums []int
	var labels []interface{}
	it := frames.Iter()
	for it.Next(s.ctx) {
		nums = append(nums, it.Number())
		labels = append(labels, s.field(it.Record(), "label"))
	}
	s.Require().NoError(it.Err())
	s.Require().NoError(it.Close(s.ctx))

	s.Equal([]int{1, 2, 5}, nums)
	s.Equal([]interface{}{"one", "two", "five"}, labels)

	// The scan staged the stored records it touched.
	rec, err := frames.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal("one", s.field(rec, "label"))
	s.True(rec.Backed())
}

func (s *Suite) TestIterEmpty() {
	frames := frame.New(s.source())
	it := frames.Iter()
	s.False(it.Next(s.ctx))
	s.NoError(it.Err())
	s.NoError(it.Close(s.ctx))

	_, err := frames.First(s.ctx)
	s.Equal(frame.ErrNoFrames, err)
}

func (s *Suite) TestFirst() {
	src := s.source()
	s.seed(src, 4, document.Document{"label": "four"})
	frames := frame.New(src)

	staged := frame.NewFrame()
	s.setField(staged, "label", "two")
	s.Require().NoError(frames.Set(s.ctx, 2, staged))

	rec, err := frames.First(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, rec.Number())
	s.Equal("two", s.field(rec, "label"))
}

func (s *Suite) TestSaveInsertsAndBinds() {
	src := s.source()
	frames := frame.New(src)

	first, err := frames.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.setField(first, "label", "one")
	second, err := frames.Get(s.ctx, 2)
	s.Require().NoError(err)
	s.setField(second, "label", "two")

	s.Require().NoError(frames.Save(s.ctx))

	id1, ok := first.ID()
	s.True(ok)
	id2, ok := second.ID()
	s.True(ok)
	s.NotEqual(id1, id2)
	s.True(first.Backed())

	s.Equal(2, s.storedCount(src))
	doc := s.stored(src, 1)
	s.Equal("one", doc["label"])
	s.Equal(s.clk.Now().Unix(), doc["_created_at"].(time.Time).Unix())

	// The flush cleared the staged map, so the next get refetches.
	refetched, err := frames.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.NotSame(first, refetched)
	got, ok := refetched.ID()
	s.True(ok)
	s.Equal(id1, got)
}

func (s *Suite) TestSaveReplacesEdited() {
	src := s.source()
	s.seed(src, 1, document.Document{"label": "old", "keep": true})
	created := s.stored(src, 1)["_created_at"].(time.Time)
	frames := frame.New(src)

	rec, err := frames.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.setField(rec, "label", "new")

	s.clk.Add(5 * time.Second)
	s.Require().NoError(frames.Save(s.ctx))

	doc := s.stored(src, 1)
	s.Equal("new", doc["label"])
	s.Equal(true, doc["keep"])
	s.Equal(created.Unix(), doc["_created_at"].(time.Time).Unix())
	s.Equal(created.Add(5*time.Second).Unix(), doc["_last_modified_at"].(time.Time).Unix())
	s.Equal(1, s.storedCount(src))
}

func (s *Suite) TestSaveDuplicateInsertKeepsPending() {
	src := s.source()
	s.seed(src, 1, document.Document{"label": "stored"})
	frames := frame.New(src)

	// Setting (rather than getting and editing) an existing number
	// stages a brand-new record, and the flush tries to insert it.
	rec := frame.NewFrame()
	s.setField(rec, "label", "clash")
	s.Require().NoError(frames.Set(s.ctx, 1, rec))

	err := frames.Save(s.ctx)
	s.Require().Error(err)
	s.True(document.IsDuplicateKey(err))

	// The staged record is still there for a retry after the
	// caller reconciles.
	staged, err := frames.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal("clash", s.field(staged, "label"))
	s.Equal("stored", s.stored(src, 1)["label"])
}

func (s *Suite) TestSaveFoldsSiblingRecords() {
	src := s.source()
	s.seed(src, 1, document.Document{"label": "old"})

	a := frame.New(src)
	b := frame.New(src)

	edited, err := a.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.setField(edited, "label", "from-a")

	fresh := frame.NewFrame()
	s.setField(fresh, "label", "from-b")
	s.Require().NoError(b.Set(s.ctx, 2, fresh))

	// Saving b writes a's staged edit too.
	s.Require().NoError(b.Save(s.ctx))
	s.Equal("from-a", s.stored(src, 1)["label"])
	s.Equal("from-b", s.stored(src, 2)["label"])

	// a still holds its staged record; saving it again is a
	// harmless re-replace.
	again, err := a.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.Same(edited, again)
	s.Require().NoError(a.Save(s.ctx))
	s.Equal("from-a", s.stored(src, 1)["label"])
}

func (s *Suite) TestSaveDeleteAllResetsSiblings() {
	src := s.source()
	s.seed(src, 1, document.Document{"label": "cat"})

	a := frame.New(src)
	b := frame.New(src)

	rec, err := a.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.True(rec.Backed())

	b.Clear()
	s.Require().NoError(b.Save(s.ctx))
	s.Equal(0, s.storedCount(src))

	// a's record lost its store identity but kept its fields, so
	// saving a re-inserts it.
	s.False(rec.Backed())
	_, ok := rec.ID()
	s.False(ok)
	s.Equal("cat", s.field(rec, "label"))

	s.Require().NoError(a.Save(s.ctx))
	s.Equal(1, s.storedCount(src))
	s.Equal("cat", s.stored(src, 1)["label"])
	_, ok = rec.ID()
	s.True(ok)
}

func (s *Suite) TestSaveDeleteResetsSiblingRecord() {
	src := s.source()
	s.seed(src, 2, document.Document{"label": "cat"})

	a := frame.New(src)
	b := frame.New(src)

	rec, err := a.Get(s.ctx, 2)
	s.Require().NoError(err)
	s.True(rec.Backed())

	b.Delete(2)
	s.Require().NoError(b.Save(s.ctx))

	s.False(rec.Backed())
	_, ok := rec.ID()
	s.False(ok)
}

func (s *Suite) TestReloadDiscardsAndResyncs() {
	src := s.source()
	s.seed(src, 1, document.Document{"label": "db"})
	s.seed(src, 2, nil)
	frames := frame.New(src)

	rec, err := frames.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.setField(rec, "label", "local")
	frames.Delete(2)
	s.Require().NoError(frames.Reload(s.ctx, false))

	// The held record snapped back to stored truth.
	s.Equal("db", s.field(rec, "label"))
	s.True(rec.Backed())

	// Pending state is gone: the delete never happens and the next
	// get is a fresh materialization.
	nums, err := frames.Numbers(s.ctx)
	s.Require().NoError(err)
	s.Equal([]int{1, 2}, nums)
	again, err := frames.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.NotSame(rec, again)
}

func (s *Suite) TestReloadResetsVanishedRecords() {
	src := s.source()
	s.seed(src, 1, document.Document{"label": "db"})
	frames := frame.New(src)

	rec, err := frames.Get(s.ctx, 1)
	s.Require().NoError(err)

	// The stored document disappears behind the cache's back.
	_, err = s.coll.DeleteMany(s.ctx, document.Filter{"_sample_id": document.Eq(src.id)})
	s.Require().NoError(err)

	s.Require().NoError(frames.Reload(s.ctx, false))
	s.False(rec.Backed())
	_, ok := rec.ID()
	s.False(ok)
}

func (s *Suite) TestReloadResyncsSiblings() {
	src := s.source()
	s.seed(src, 1, document.Document{"label": "db"})

	a := frame.New(src)
	b := frame.New(src)

	rec, err := a.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.setField(rec, "label", "local")

	s.Require().NoError(b.Reload(s.ctx, false))
	s.Equal("db", s.field(rec, "label"))
}

func (s *Suite) TestReloadHardReloadsSchema() {
	src := s.source()
	schema := newTestSchema()
	src.schema = schema
	frames := frame.New(src)

	s.Require().NoError(frames.Reload(s.ctx, false))
	s.Equal(0, schema.reloads)
	s.Require().NoError(frames.Reload(s.ctx, true))
	s.Equal(1, schema.reloads)
}

func (s *Suite) TestHas() {
	src := s.source()
	s.seed(src, 1, nil)
	frames := frame.New(src)

	has, err := frames.Has(s.ctx, 1)
	s.Require().NoError(err)
	s.True(has)
	has, err = frames.Has(s.ctx, 2)
	s.Require().NoError(err)
	s.False(has)
	has, err = frames.Has(s.ctx, 0)
	s.Require().NoError(err)
	s.False(has)

	// Has does not materialize: the next save writes nothing new.
	s.Require().NoError(frames.Save(s.ctx))
	s.Equal(1, s.storedCount(src))

	frames.Delete(1)
	has, err = frames.Has(s.ctx, 1)
	s.Require().NoError(err)
	s.False(has)

	rec := frame.NewFrame()
	s.Require().NoError(frames.Set(s.ctx, 5, rec))
	has, err = frames.Has(s.ctx, 5)
	s.Require().NoError(err)
	s.True(has)
}

func (s *Suite) TestUpdateRespectsOverwrite() {
	src := s.source()
	s.seed(src, 1, document.Document{"label": "db"})
	frames := frame.New(src)

	one := frame.NewFrame()
	s.setField(one, "label", "incoming")
	two := frame.NewFrame()
	s.setField(two, "label", "fresh")

	// Number 1 already exists, so without overwrite only 2 stages.
	batch := map[int]frame.Record{1: one, 2: two}
	s.Require().NoError(frames.Update(s.ctx, batch, false, true))
	staged, err := frames.Get(s.ctx, 2)
	s.Require().NoError(err)
	s.Equal("fresh", s.field(staged, "label"))
	rec, err := frames.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal("db", s.field(rec, "label"))

	// With overwrite the staged 2 is replaced wholesale.
	second := frame.NewFrame()
	s.setField(second, "label", "second")
	err = frames.Update(s.ctx, map[int]frame.Record{2: second}, true, true)
	s.Require().NoError(err)

	s.Require().NoError(frames.Save(s.ctx))
	s.Equal("db", s.stored(src, 1)["label"])
	s.Equal("second", s.stored(src, 2)["label"])
}

func (s *Suite) TestMergeCombinesFields() {
	src := s.source()
	s.seed(src, 1, document.Document{"label": "cat", "confidence": 0.5})
	frames := frame.New(src)

	incoming := frame.NewFrame()
	s.setField(incoming, "confidence", 0.9)
	s.setField(incoming, "verified", true)
	fresh := frame.NewFrame()
	s.setField(fresh, "label", "dog")

	err := frames.Merge(s.ctx, map[int]frame.Record{1: incoming, 2: fresh},
		frame.MergeOptions{Overwrite: true}, true)
	s.Require().NoError(err)

	rec, err := frames.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal("cat", s.field(rec, "label"))
	s.Equal(0.9, s.field(rec, "confidence"))
	s.Equal(true, s.field(rec, "verified"))

	added, err := frames.Get(s.ctx, 2)
	s.Require().NoError(err)
	s.Equal("dog", s.field(added, "label"))
}

func (s *Suite) TestMergeWithoutOverwriteFillsOnly() {
	src := s.source()
	s.seed(src, 1, document.Document{"label": "cat"})
	frames := frame.New(src)

	incoming := frame.NewFrame()
	s.setField(incoming, "label", "dog")
	s.setField(incoming, "verified", true)

	err := frames.Merge(s.ctx, map[int]frame.Record{1: incoming},
		frame.MergeOptions{}, true)
	s.Require().NoError(err)

	rec, err := frames.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.Equal("cat", s.field(rec, "label"))
	s.Equal(true, s.field(rec, "verified"))
}
