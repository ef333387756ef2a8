package handle

import (
	"github.com/R3E-Network/ethercat-engine/ethercat/codec"
)

// Transaction batches one or more PDO writes under the writer's staging
// lock. It acquires the lock on construction and releases it on Close, so
// every field written through one Transaction reaches the wire as a single
// atomic batch with respect to the cycle thread's staging-to-active
// Snapshot and any other writer's Transaction — per spec.md §4.3
// "Transaction: acquires write_mu on construction, releases on
// destruction" and §5 "Transaction construction: blocks on write_mu".
// Non-copyable in spirit: callers should treat a Transaction as single-use
// and always Close it (typically via defer).
type Transaction struct {
	w       *Writer
	staging []byte
	closed  bool
}

func newTransaction(w *Writer) *Transaction {
	w.refreshIfStale()
	return &Transaction{w: w, staging: w.eng.LockOutput()}
}

// Write inserts value at the index'th registered PDO. Writes to an
// unknown index (out of range) are silent no-ops, matching spec.md §4.3's
// "writes with an unknown PDO index are silent no-ops".
func (tx *Transaction) Write(index int, value codec.Value) {
	if tx.closed {
		return
	}

	tx.w.mu.Lock()
	resolved := tx.w.resolved
	tx.w.mu.Unlock()

	if index < 0 || index >= len(resolved) {
		return
	}
	rp := resolved[index]
	codec.Insert(tx.staging, rp.Offset, rp.BitLength, rp.Type, value)
}

// Close releases the transaction's hold on the staging lock. Idempotent.
func (tx *Transaction) Close() {
	if tx.closed {
		return
	}
	tx.closed = true
	tx.w.eng.UnlockOutput()
}
