package buffer

import "sync"

// OutputBuffers holds the staging buffer writers append into between cycles
// and the active buffer the cycle thread sends to the Master, per
// spec.md §3 and §5. Writers never touch the active buffer; the cycle
// thread never touches staging except to snapshot it.
type OutputBuffers struct {
	mu      sync.Mutex
	staging []byte
	active  []byte
}

// NewOutputBuffers allocates both buffers at the given size.
func NewOutputBuffers(size int) *OutputBuffers {
	return &OutputBuffers{
		staging: make([]byte, size),
		active:  make([]byte, size),
	}
}

// Resize reallocates both buffers, dropping any staged-but-unflushed writes.
// Called by the reconfigure path while the cycle thread is stopped.
func (o *OutputBuffers) Resize(size int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.staging = make([]byte, size)
	o.active = make([]byte, size)
}

// Lock acquires the staging lock and returns the staging buffer for
// in-place writes. Held for an entire Transaction's lifetime (not just one
// field write) so a multi-field batch can't interleave with Snapshot or
// another writer's Transaction; the caller must call Unlock exactly once
// to release it.
func (o *OutputBuffers) Lock() []byte {
	o.mu.Lock()
	return o.staging
}

// Unlock releases the staging lock acquired by Lock.
func (o *OutputBuffers) Unlock() {
	o.mu.Unlock()
}

// Snapshot copies staging into active under lock; called once per cycle by
// the cycle thread immediately before send(), per spec.md §4.3 step "consume
// outputs".
func (o *OutputBuffers) Snapshot() {
	o.mu.Lock()
	copy(o.active, o.staging)
	o.mu.Unlock()
}

// Active returns the active buffer for the cycle thread to hand to the
// Master's send(). Safe to call without the lock: only the cycle thread
// calls Snapshot and Active, and never concurrently with itself.
func (o *OutputBuffers) Active() []byte {
	return o.active
}

// Size returns the current buffer length.
func (o *OutputBuffers) Size() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.staging)
}
