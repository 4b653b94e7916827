// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package frame_test

import (
	"time"

	"github.com/diffeo/go-framestore/document"
	"github.com/diffeo/go-framestore/frame"
)

// saverSource builds a backed source with its own sample id, so the
// saver's caches are not peers of each other.
func (s *Suite) saverSource(suffix string) *testSource {
	src := s.source()
	src.id = document.ID(string(src.id) + "-" + suffix)
	return src
}

// stagedCache builds a cache with one staged new frame.
func (s *Suite) stagedCache(src *testSource, label string) *frame.Frames {
	frames := frame.New(src)
	rec, err := frames.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.setField(rec, "label", label)
	return frames
}

func (s *Suite) TestSaverBatchSizeFlush() {
	a := s.saverSource("a")
	b := s.saverSource("b")
	saver := frame.NewSaver(frame.SaverOptions{BatchSize: 2, Clock: s.clk})

	s.Require().NoError(saver.Save(s.ctx, s.stagedCache(a, "one")))
	s.Equal(1, saver.Pending())
	s.Equal(0, s.storedCount(a))

	s.Require().NoError(saver.Save(s.ctx, s.stagedCache(b, "two")))
	s.Equal(0, saver.Pending())
	s.Equal("one", s.stored(a, 1)["label"])
	s.Equal("two", s.stored(b, 1)["label"])
}

func (s *Suite) TestSaverDedupes() {
	src := s.saverSource("a")
	saver := frame.NewSaver(frame.SaverOptions{BatchSize: 3, Clock: s.clk})
	frames := s.stagedCache(src, "first")

	s.Require().NoError(saver.Save(s.ctx, frames))
	s.Require().NoError(saver.Save(s.ctx, frames))
	s.Equal(1, saver.Pending())

	// The flush writes the cache's state at flush time, not at
	// enqueue time.
	rec, err := frames.Get(s.ctx, 1)
	s.Require().NoError(err)
	s.setField(rec, "label", "second")
	s.Require().NoError(saver.Flush(s.ctx))
	s.Equal(0, saver.Pending())
	s.Equal("second", s.stored(src, 1)["label"])
}

func (s *Suite) TestSaverIntervalFlush() {
	a := s.saverSource("a")
	b := s.saverSource("b")
	saver := frame.NewSaver(frame.SaverOptions{Interval: 5 * time.Second, Clock: s.clk})

	s.Require().NoError(saver.Save(s.ctx, s.stagedCache(a, "one")))
	s.Equal(1, saver.Pending())

	s.clk.Add(5 * time.Second)
	s.Require().NoError(saver.Save(s.ctx, s.stagedCache(b, "two")))
	s.Equal(0, saver.Pending())
	s.Equal(1, s.storedCount(a))
	s.Equal(1, s.storedCount(b))
}

func (s *Suite) TestSaverFlushErrorKeepsTail() {
	a := s.saverSource("a")
	b := s.saverSource("b")
	c := s.saverSource("c")

	// b will fail: its staged frame inserts over a stored number.
	s.seed(b, 1, document.Document{"label": "occupied"})
	bad := frame.New(b)
	s.Require().NoError(bad.Set(s.ctx, 1, frame.NewFrame()))

	saver := frame.NewSaver(frame.SaverOptions{Clock: s.clk})
	s.Require().NoError(saver.Save(s.ctx, s.stagedCache(a, "one")))
	s.Require().NoError(saver.Save(s.ctx, bad))
	s.Require().NoError(saver.Save(s.ctx, s.stagedCache(c, "three")))

	err := saver.Flush(s.ctx)
	s.Require().Error(err)
	s.True(document.IsDuplicateKey(err))

	// a got through; b and everything behind it are still pending.
	s.Equal(2, saver.Pending())
	s.Equal("one", s.stored(a, 1)["label"])
	s.Equal(0, s.storedCount(c))

	// Clear the collision and the retry picks up where it stopped.
	_, err = s.coll.DeleteMany(s.ctx, document.Filter{"_sample_id": document.Eq(b.id)})
	s.Require().NoError(err)
	s.Require().NoError(saver.Flush(s.ctx))
	s.Equal(0, saver.Pending())
	s.Equal(1, s.storedCount(b))
	s.Equal("three", s.stored(c, 1)["label"])
}

func (s *Suite) TestSaverFlushEmpty() {
	saver := frame.NewSaver(frame.SaverOptions{})
	s.Require().NoError(saver.Flush(s.ctx))
	s.Equal(0, saver.Pending())
}
