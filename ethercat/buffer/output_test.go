package buffer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOutputBuffers_WriteSnapshotActive(t *testing.T) {
	ob := NewOutputBuffers(4)

	staging := ob.Lock()
	staging[0] = 0xAA
	staging[1] = 0xBB
	ob.Unlock()

	// Active unchanged until Snapshot runs.
	require.Equal(t, []byte{0, 0, 0, 0}, ob.Active())

	ob.Snapshot()
	require.Equal(t, []byte{0xAA, 0xBB, 0, 0}, ob.Active())
}

func TestOutputBuffers_ResizeDropsStagedWrites(t *testing.T) {
	ob := NewOutputBuffers(2)
	staging := ob.Lock()
	staging[0] = 0xFF
	ob.Unlock()
	ob.Resize(4)
	require.Equal(t, 4, ob.Size())
	ob.Snapshot()
	require.Equal(t, []byte{0, 0, 0, 0}, ob.Active())
}

// TestOutputBuffers_ConcurrentWritersNoRace exercises many concurrent
// Writer-style field writes interleaved with cycle-thread Snapshots; the
// race detector (not run here, but the mutex discipline it would catch) is
// what this guards, per spec.md §3's "writers may run concurrently with
// each other and with the cycle thread" invariant.
func TestOutputBuffers_ConcurrentWritersNoRace(t *testing.T) {
	ob := NewOutputBuffers(16)
	var wg sync.WaitGroup

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				staging := ob.Lock()
				staging[idx] = byte(i)
				ob.Unlock()
			}
		}(w)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			ob.Snapshot()
		}
	}()

	wg.Wait()
}

// TestOutputBuffers_LockUnlockSpansWholeBatch demonstrates that Lock/Unlock
// holds the staging mutex across an entire multi-field batch, so Snapshot
// never observes a torn write: it sees either both bytes of a two-byte
// field unwritten or both written, never one of each. Locking per field
// instead of per transaction would let Snapshot interleave between the two
// writes and ship a half-updated batch.
func TestOutputBuffers_LockUnlockSpansWholeBatch(t *testing.T) {
	ob := NewOutputBuffers(2)
	var wg sync.WaitGroup
	stop := make(chan struct{})
	tornBatch := false

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := byte(1); ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			staging := ob.Lock()
			staging[0] = i
			staging[1] = i
			ob.Unlock()
		}
	}()

	for i := 0; i < 2000; i++ {
		ob.Snapshot()
		active := ob.Active()
		if active[0] != active[1] {
			tornBatch = true
		}
	}
	close(stop)
	wg.Wait()
	require.False(t, tornBatch, "Snapshot must never observe a half-written batch")
}
