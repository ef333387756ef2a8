package handle

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/R3E-Network/ethercat-engine/ethercat/codec"
	"github.com/R3E-Network/ethercat-engine/ethercat/engine"
	"github.com/R3E-Network/ethercat-engine/ethercat/master"
)

// Writer is a single-owner handle that injects values into the outbound
// process image without racing the cycle thread's staging-to-active
// snapshot, per spec.md §4.3.
type Writer struct {
	eng *engine.Engine
	id  uint64

	mu          sync.Mutex
	resolved    []ResolvedPDO
	myConfigGen uint64

	zlog   zerolog.Logger
	closed atomic.Bool
}

// OpenWriter registers entries with eng at the given execution rate and
// returns a bound Writer.
func OpenWriter(ctx context.Context, eng *engine.Engine, entries []master.PDOEntry, rate time.Duration) (*Writer, error) {
	reg, err := eng.OpenWriter(ctx, entries, rate)
	if err != nil {
		return nil, err
	}
	w := &Writer{
		eng:  eng,
		id:   reg.ID,
		zlog: newHandleLogger("writer", eng.InterfaceName(), reg.ID),
	}
	w.refreshFrom(entries, reg.Offsets)
	w.myConfigGen = eng.ConfigGeneration()
	w.zlog.Debug().Int("pdo_count", len(entries)).Msg("writer opened")
	return w, nil
}

// Close unregisters the writer. Idempotent.
func (w *Writer) Close() {
	if !w.closed.CompareAndSwap(false, true) {
		return
	}
	w.eng.CloseWriter(w.id)
	w.zlog.Debug().Msg("writer closed")
}

// OpenTx opens a Transaction over this writer's staging buffer, holding
// the staging lock for its lifetime. Callers must call Transaction.Close
// (typically via defer) to release it.
func (w *Writer) OpenTx() *Transaction {
	return newTransaction(w)
}

// Write sets the index'th registered PDO to value, equivalent to
// `OpenTx().Write(index, value)` followed by an immediate Close.
func (w *Writer) Write(index int, value codec.Value) {
	tx := w.OpenTx()
	defer tx.Close()
	tx.Write(index, value)
}

// refreshIfStale re-resolves offsets when the engine's configuration
// generation has moved past what this writer last observed.
func (w *Writer) refreshIfStale() {
	gen := w.eng.ConfigGeneration()
	w.mu.Lock()
	stale := gen != w.myConfigGen
	w.mu.Unlock()
	if !stale {
		return
	}
	entries, offsets, ok := w.eng.Registration(w.id)
	if !ok {
		return
	}
	w.refreshFrom(entries, offsets)
	w.mu.Lock()
	w.myConfigGen = gen
	w.mu.Unlock()
}

func (w *Writer) refreshFrom(entries []master.PDOEntry, offsets []master.Offset) {
	resolved := make([]ResolvedPDO, len(entries))
	for i, e := range entries {
		var off master.Offset
		if i < len(offsets) {
			off = offsets[i]
		}
		resolved[i] = ResolvedPDO{Entry: e, Offset: toCodecOffset(off), Type: toCodecType(e.DeclaredType), BitLength: e.BitLength}
	}
	w.mu.Lock()
	w.resolved = resolved
	w.mu.Unlock()
}
