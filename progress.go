package cloudvfs

import (
	"context"
	"io"
)

// ProgressFunc receives the completed percentage of a transfer, 0 to 100.
// Reports never decrease; the first is 0 and the last is 100.
type ProgressFunc func(percent int)

// progressTracker converts byte counts into percentages.
type progressTracker struct {
	fn          ProgressFunc
	total       int64
	transferred int64
	last        int
}

func newProgressTracker(total int64, fn ProgressFunc) *progressTracker {
	return &progressTracker{fn: fn, total: total}
}

func (t *progressTracker) start() {
	t.emit(0)
}

func (t *progressTracker) add(n int) {
	t.transferred += int64(n)
	if t.total <= 0 {
		t.emit(0)
		return
	}
	t.emit(int(t.transferred * 100 / t.total))
}

func (t *progressTracker) finish() {
	t.emit(100)
}

func (t *progressTracker) emit(percent int) {
	if percent > 100 {
		percent = 100
	}
	if percent < t.last {
		percent = t.last
	}
	t.last = percent
	if t.fn != nil {
		t.fn(percent)
	}
}

// transferReader feeds an upload in chunks of at most chunkSize bytes,
// reporting progress after each chunk and stopping once ctx is done.
type transferReader struct {
	ctx       context.Context
	reader    io.Reader
	chunkSize int
	tracker   *progressTracker
}

func (r *transferReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	if len(p) > r.chunkSize {
		p = p[:r.chunkSize]
	}
	n, err := r.reader.Read(p)
	if n > 0 {
		r.tracker.add(n)
	}
	return n, err
}
