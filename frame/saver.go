// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package frame

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultBatchSize is the number of distinct caches a Saver holds
// before it flushes, when SaverOptions does not say otherwise.
const DefaultBatchSize = 100

// SaverOptions configures a Saver.
type SaverOptions struct {
	// BatchSize flushes once this many distinct caches are
	// pending.  Zero means DefaultBatchSize.
	BatchSize int

	// Interval flushes a save once this much time has passed since
	// the previous flush.  Zero disables time-based flushing.
	Interval time.Duration

	// Clock supplies time for Interval; nil means the wall clock.
	Clock clock.Clock
}

// Saver batches frame saves across many samples' caches.  Instead of
// flushing each cache as it is touched, callers hand them to Save and
// the Saver writes them out in batches, once enough caches are
// pending or enough time has passed.  Anything still pending must be
// flushed explicitly when the work is done.
//
// A Saver is not safe for concurrent use.
type Saver struct {
	batchSize int
	interval  time.Duration
	clk       clock.Clock

	pending []*Frames
	seen    map[*Frames]struct{}
	last    time.Time
}

// NewSaver creates a Saver.
func NewSaver(opts SaverOptions) *Saver {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Saver{
		batchSize: opts.BatchSize,
		interval:  opts.Interval,
		clk:       opts.Clock,
		seen:      make(map[*Frames]struct{}),
		last:      opts.Clock.Now(),
	}
}

// Save enqueues f and flushes the batch if it crossed the size or
// interval threshold.  Enqueueing the same cache twice before a flush
// holds it only once; the eventual flush writes its state at that
// point.
func (s *Saver) Save(ctx context.Context, f *Frames) error {
	if _, ok := s.seen[f]; !ok {
		s.seen[f] = struct{}{}
		s.pending = append(s.pending, f)
	}
	if len(s.pending) >= s.batchSize {
		return s.Flush(ctx)
	}
	if s.interval > 0 && s.clk.Now().Sub(s.last) >= s.interval {
		return s.Flush(ctx)
	}
	return nil
}

// Flush saves every pending cache in the order they were enqueued.
// On failure the failed cache and everything behind it stay pending,
// so a retry picks up where the batch stopped.
func (s *Saver) Flush(ctx context.Context) error {
	for len(s.pending) > 0 {
		f := s.pending[0]
		if err := f.Save(ctx); err != nil {
			return err
		}
		s.pending = s.pending[1:]
		delete(s.seen, f)
	}
	s.pending = nil
	s.last = s.clk.Now()
	return nil
}

// Pending returns how many caches are waiting for the next flush.
func (s *Saver) Pending() int {
	return len(s.pending)
}
