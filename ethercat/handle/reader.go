// Package handle implements the user-facing Reader, Writer, and
// Transaction façades over an engine.Engine: auto-unregistering handles
// that re-resolve their PDO offsets lazily on configuration-generation
// change, per spec.md §4.2 and §4.3.
package handle

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/R3E-Network/ethercat-engine/ethercat/codec"
	"github.com/R3E-Network/ethercat-engine/ethercat/engine"
	"github.com/R3E-Network/ethercat-engine/ethercat/master"
	"github.com/R3E-Network/ethercat-engine/ethercat/xbreaker"
	"github.com/R3E-Network/ethercat-engine/ethercat/xerrors"
)

// ResolvedPDO is the reader/writer-local materialization of a registered
// PDOEntry: its resolved offset plus the bit length and declared type
// needed to extract/insert a value, per spec.md §3.
type ResolvedPDO struct {
	Entry     master.PDOEntry
	Offset    codec.Offset
	Type      codec.DataType
	BitLength int
}

// Frame is the destination a Reader.Read call extracts values into: one
// codec.Value per registered PDO, in registration order.
type Frame []codec.Value

// Reader is a single-owner handle reading one cycle's worth of inputs at
// a time. Not safe for concurrent use by multiple goroutines — the
// specification's handles are single-owner.
type Reader struct {
	eng *engine.Engine
	id  uint64

	resolved      []ResolvedPDO
	privateBuf    []byte
	lastSeenEpoch uint64
	myConfigGen   uint64

	zlog   zerolog.Logger
	closed atomic.Bool
}

// OpenReader registers entries with eng at the given sample rate and
// returns a bound Reader whose ResolvedPDO set reflects the post-
// reconfigure generation. On failure the engine rolls back the tentative
// registration and the error is returned unchanged.
func OpenReader(ctx context.Context, eng *engine.Engine, entries []master.PDOEntry, rate time.Duration) (*Reader, error) {
	reg, err := eng.OpenReader(ctx, entries, rate)
	if err != nil {
		return nil, err
	}
	r := &Reader{
		eng:  eng,
		id:   reg.ID,
		zlog: newHandleLogger("reader", eng.InterfaceName(), reg.ID),
	}
	r.refreshFrom(entries, reg.Offsets)
	r.myConfigGen = eng.ConfigGeneration()
	r.zlog.Debug().Int("pdo_count", len(entries)).Msg("reader opened")
	return r, nil
}

// Close unregisters the reader. Idempotent and safe to call more than
// once; subsequent calls are no-ops.
func (r *Reader) Close() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	r.eng.CloseReader(r.id)
	r.zlog.Debug().Msg("reader closed")
}

// Size returns the total byte length of this reader's private buffer.
func (r *Reader) Size() int { return len(r.privateBuf) }

// Wait blocks until the engine publishes a new input cycle, the breaker
// is stopped, or the engine starts restarting — steps 1–3 of Read,
// without data extraction, per spec.md §4.2.
func (r *Reader) Wait(b *xbreaker.Breaker) error {
	epoch, outcome := r.eng.WaitEpoch(b, r.lastSeenEpoch)
	err, _ := r.applyOutcome(epoch, outcome)
	return err
}

// Read blocks for the next input cycle (as Wait does) and then extracts
// every registered PDO's value into frame, which must have at least as
// many elements as this reader has PDOs.
func (r *Reader) Read(b *xbreaker.Breaker, frame Frame) error {
	epoch, outcome := r.eng.WaitEpoch(b, r.lastSeenEpoch)
	err, ready := r.applyOutcome(epoch, outcome)
	if err != nil {
		return err
	}
	if !ready {
		// caller-controlled stop: success with no frame change
		return nil
	}

	genBefore := r.eng.ConfigGeneration()
	r.eng.Snapshot(r.privateBuf)
	if r.eng.ConfigGeneration() != genBefore {
		return xerrors.EngineRestarting()
	}

	if len(frame) < len(r.resolved) {
		return xerrors.New(xerrors.KindCyclic, "frame has fewer series than reader has PDOs")
	}
	for i, rp := range r.resolved {
		val, err := codec.Extract(r.privateBuf, rp.Offset, rp.BitLength, rp.Type)
		if err != nil {
			return xerrors.Wrap(xerrors.KindCyclic, "pdo extraction failed", err)
		}
		frame[i] = val
	}
	return nil
}

// applyOutcome translates a WaitEpoch result into the Reader-facing
// error/ready pair, refreshing cached offsets on a generation bump, per
// spec.md §4.2 steps 2–3.
func (r *Reader) applyOutcome(epoch uint64, outcome engine.WaitOutcome) (err error, ready bool) {
	switch outcome {
	case engine.WaitTimedOut:
		return xerrors.CycleOverrun(), false
	case engine.WaitRestarting:
		return xerrors.EngineRestarting(), false
	case engine.WaitStopped:
		return nil, false
	case engine.WaitEngineStopped:
		return xerrors.CyclicEngineStopped(), false
	default:
		r.lastSeenEpoch = epoch
		if gen := r.eng.ConfigGeneration(); gen != r.myConfigGen {
			r.refreshPDOs()
			r.myConfigGen = gen
		}
		return nil, true
	}
}

// refreshPDOs re-acquires this reader's offsets from the engine and
// resizes the private buffer to match the current SIB size, per
// spec.md §4.2 step 3.
func (r *Reader) refreshPDOs() {
	entries, offsets, ok := r.eng.Registration(r.id)
	if !ok {
		return
	}
	r.refreshFrom(entries, offsets)
}

func (r *Reader) refreshFrom(entries []master.PDOEntry, offsets []master.Offset) {
	resolved := make([]ResolvedPDO, len(entries))
	for i, e := range entries {
		var off master.Offset
		if i < len(offsets) {
			off = offsets[i]
		}
		resolved[i] = ResolvedPDO{Entry: e, Offset: toCodecOffset(off), Type: toCodecType(e.DeclaredType), BitLength: e.BitLength}
	}
	r.resolved = resolved
	r.privateBuf = make([]byte, r.eng.InputSize())
}
