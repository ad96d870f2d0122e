// Package session holds the in-progress time series of a recording and
// turns it into an immutable Session once the recording stops.
package session

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andresmejia3/biomech/internal/types"
)

var (
	// ErrFrozen is returned when appending to a buffer that has been finalized.
	ErrFrozen = errors.New("session buffer is finalized")
	// ErrOutOfOrder is returned when a sample is older than the last appended one.
	ErrOutOfOrder = errors.New("sample timestamp precedes last sample")
)

// Buffer is an append-only, ordered sequence of samples with a single writer.
//
// Readers load the published slice header atomically and never take the writer lock,
// so a live preview never delays the capture loop. Elements below the published length
// are never written again, which is what makes sharing the backing array safe.
type Buffer struct {
	mu      sync.Mutex // serializes writers
	samples atomic.Pointer[[]types.JointAngleSample]
	frozen  atomic.Bool
}

// NewBuffer returns an empty buffer sized for a few seconds of capture.
func NewBuffer() *Buffer {
	b := &Buffer{}
	initial := make([]types.JointAngleSample, 0, 256)
	b.samples.Store(&initial)
	return b
}

// Append adds a sample at the end of the sequence.
func (b *Buffer) Append(s types.JointAngleSample) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frozen.Load() {
		return ErrFrozen
	}

	cur := *b.samples.Load()
	if n := len(cur); n > 0 && s.Timestamp.Before(cur[n-1].Timestamp) {
		return ErrOutOfOrder
	}

	next := append(cur, s)
	b.samples.Store(&next)
	return nil
}

// Len reports the number of samples appended so far.
func (b *Buffer) Len() int {
	return len(*b.samples.Load())
}

// Snapshot returns a copy of the samples appended so far.
func (b *Buffer) Snapshot() []types.JointAngleSample {
	cur := *b.samples.Load()
	out := make([]types.JointAngleSample, len(cur))
	copy(out, cur)
	return out
}

// Last returns the most recent sample, if any.
func (b *Buffer) Last() (types.JointAngleSample, bool) {
	cur := *b.samples.Load()
	if len(cur) == 0 {
		return types.JointAngleSample{}, false
	}
	return cur[len(cur)-1], true
}

// Frozen reports whether Freeze has been called.
func (b *Buffer) Frozen() bool {
	return b.frozen.Load()
}

// Freeze stops accepting appends and returns the final sequence. Calling it again returns the same samples.
func (b *Buffer) Freeze() []types.JointAngleSample {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frozen.Store(true)
	return b.Snapshot()
}

// Finalize freezes the buffer into an immutable Session payload ready for the store.
func Finalize(b *Buffer, meta types.SessionMeta, start, end time.Time) types.Session {
	return types.Session{
		Name:      meta.Name,
		Type:      meta.Type,
		StartTime: start,
		EndTime:   end,
		JointData: b.Freeze(),
	}
}
