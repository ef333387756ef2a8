// Package buffer implements the Shared Input Buffer (a seqlock-published,
// wait-free-for-the-publisher snapshot of the Master's input image) and the
// Output Staging/Active double buffer, per spec.md §3 and §4.4.
package buffer

import (
	"sync"
	"sync/atomic"
)

const cacheLinePad = 64

// paddedUint64 is a uint64 atomic counter padded to its own cache line, so
// the seq and epoch counters (hammered by the publisher every cycle and
// polled by every reader) never false-share.
type paddedUint64 struct {
	v   atomic.Uint64
	_   [cacheLinePad - 8]byte
}

// SharedInputBuffer is the engine's single input-image snapshot, published
// once per cycle under a seqlock so readers never block the cycle thread
// and never observe a torn read.
//
// seq is incremented before and after each publication (odd = write in
// progress, even = stable); epoch is incremented once per cycle after
// publication completes and is the change-notification/idempotency tag.
// Both use release/acquire ordering per spec.md §3.
type SharedInputBuffer struct {
	seq   paddedUint64
	epoch paddedUint64

	mu   sync.RWMutex // guards ptr/size across a reconfigure's reallocation
	ptr  *[]byte
	size atomic.Int64
}

// NewSharedInputBuffer allocates a buffer of the given size (typically 0 at
// construction; resized on the first reconfigure).
func NewSharedInputBuffer(size int) *SharedInputBuffer {
	buf := make([]byte, size)
	s := &SharedInputBuffer{ptr: &buf}
	s.size.Store(int64(size))
	return s
}

// Resize reallocates the backing buffer, as happens on every reconfigure
// (spec.md §4.1 step 4). The reconfigure path calls it while the cycle
// thread is stopped; it must never run concurrently with Publish.
func (s *SharedInputBuffer) Resize(size int) {
	buf := make([]byte, size)
	s.mu.Lock()
	s.ptr = &buf
	s.mu.Unlock()
	s.size.Store(int64(size))
}

// Size returns the current buffer length.
func (s *SharedInputBuffer) Size() int {
	return int(s.size.Load())
}

// Epoch returns the current publication epoch.
func (s *SharedInputBuffer) Epoch() uint64 {
	return s.epoch.v.Load()
}

// Publish copies src into the buffer under the seqlock protocol and bumps
// the epoch. Only the cycle thread calls this (spec.md §3 invariant: "The
// cycle thread is the unique writer of SharedInputBuffer").
func (s *SharedInputBuffer) Publish(src []byte) {
	s.seq.v.Add(1) // now odd: write in progress

	s.mu.RLock()
	dst := *s.ptr
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	copy(dst[:n], src[:n])
	s.mu.RUnlock()

	s.seq.v.Add(1) // now even: stable
	s.epoch.v.Add(1)
}

// Snapshot copies up to len(dst) bytes of the most recently published image
// into dst, retrying while a publication is in flight, per the consumer
// copy loop in spec.md §4.2 step 4. It returns the number of bytes copied.
func (s *SharedInputBuffer) Snapshot(dst []byte) (n int, retries int) {
	for {
		s0 := s.seq.v.Load()
		if s0%2 == 1 {
			retries++
			continue // publisher mid-write, spin
		}

		s.mu.RLock()
		src := *s.ptr
		m := len(dst)
		if len(src) < m {
			m = len(src)
		}
		copy(dst[:m], src[:m])
		s.mu.RUnlock()

		s1 := s.seq.v.Load()
		if s0 == s1 {
			return m, retries
		}
		retries++
	}
}
