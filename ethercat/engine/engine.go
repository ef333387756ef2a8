// Package engine implements the real-time cyclic fieldbus exchange engine:
// the dedicated cycle thread that drives receive → publish inputs →
// consume outputs → send → wait, the reconfigure coordinator that keeps
// reader/writer offsets aligned across topology changes, and the
// registration bookkeeping Reader/Writer/Transaction handles build on.
package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/R3E-Network/ethercat-engine/ethercat/buffer"
	"github.com/R3E-Network/ethercat-engine/ethercat/master"
	"github.com/R3E-Network/ethercat-engine/ethercat/timer"
	"github.com/R3E-Network/ethercat-engine/ethercat/xbreaker"
	"github.com/R3E-Network/ethercat-engine/ethercat/xerrors"
	"github.com/R3E-Network/ethercat-engine/internal/metrics"
	"github.com/R3E-Network/ethercat-engine/internal/telemetry"
)

const readWaitTimeout = 200 * time.Millisecond

// WaitOutcome reports why a Reader/Writer's wait for the next publication
// returned.
type WaitOutcome int

const (
	WaitReady WaitOutcome = iota
	WaitTimedOut
	WaitRestarting
	// WaitStopped means the caller's own breaker was stopped — the handle
	// owner asked to close. Not an error: spec.md §4.2 step 2 treats a
	// caller-requested stop as a clean, silent return.
	WaitStopped
	// WaitEngineStopped means the cycle thread itself is not running while
	// the caller's breaker is still live — the engine stopped on its own
	// (a permanent activation/reconfigure failure, most often), distinct
	// from the caller asking to close. spec.md §4.2 step 2 surfaces this
	// as a CYCLIC error rather than a silent return.
	WaitEngineStopped
)

// Engine is one cyclic exchange engine bound to a single Master instance.
// Construct via New; the cycle thread is not running until the first
// successful call to openReader/openWriter drives a reconfigure.
type Engine struct {
	iface  string
	master master.Master
	cfg    Config
	log    *telemetry.Logger
	zlog   *zap.Logger
	met    *metrics.Metrics

	sib *buffer.SharedInputBuffer
	ob  *buffer.OutputBuffers

	readerMu sync.Mutex
	readers  []*Registration

	writerMu sync.Mutex
	writers  []*Registration

	nextRegID atomic.Uint64
	configGen atomic.Uint64
	restarting atomic.Bool
	taskCount  atomic.Int32

	rateMu sync.Mutex
	rate   time.Duration

	reconfigureMu sync.Mutex

	condMu sync.Mutex
	cond   *sync.Cond

	cycleBreaker *xbreaker.Breaker
	cycleWG      sync.WaitGroup
	cycleRunning atomic.Bool
	cycleTimer   *timer.Timer

	initMu      sync.Mutex
	initialized bool
}

// New constructs an Engine bound to m, initially idle (no cycle thread,
// no registrations).
func New(ifaceName string, m master.Master, cfg Config, met *metrics.Metrics) *Engine {
	e := &Engine{
		iface:        ifaceName,
		master:       m,
		cfg:          cfg,
		log:          telemetry.NewFromEnv("engine"),
		zlog:         zap.NewNop(),
		met:          met,
		sib:          buffer.NewSharedInputBuffer(0),
		ob:           buffer.NewOutputBuffers(0),
		cycleBreaker: xbreaker.New(xbreaker.DefaultConfig()),
	}
	e.cond = sync.NewCond(&e.condMu)
	if zl, err := zap.NewProduction(); err == nil {
		e.zlog = zl
	}
	return e
}

// InterfaceName returns the bound interface or backend identity.
func (e *Engine) InterfaceName() string { return e.iface }

// Slaves passes through to the master's topology report.
func (e *Engine) Slaves() []master.SlaveInfo { return e.master.Slaves() }

// CycleRate returns the current cycle period (the max requested rate
// across all registrations).
func (e *Engine) CycleRate() time.Duration {
	e.rateMu.Lock()
	defer e.rateMu.Unlock()
	return e.rate
}

// Running reports whether the cycle thread is active.
func (e *Engine) Running() bool { return e.cycleRunning.Load() }

// Restarting reports whether a reconfigure is currently in flight.
func (e *Engine) Restarting() bool { return e.restarting.Load() }

// ConfigGeneration returns the current configuration generation.
func (e *Engine) ConfigGeneration() uint64 { return e.configGen.Load() }

// Epoch returns the SharedInputBuffer's current publication epoch.
func (e *Engine) Epoch() uint64 { return e.sib.Epoch() }

// EnsureInitialized idempotently initializes the master without
// activating cyclic exchange, for discovery code paths (spec.md §4.1).
func (e *Engine) EnsureInitialized(ctx context.Context) error {
	e.initMu.Lock()
	defer e.initMu.Unlock()
	if e.initialized {
		return nil
	}
	if err := e.master.Initialize(ctx); err != nil {
		return xerrors.MasterInit(err)
	}
	e.initialized = true
	return nil
}

// OpenReader registers entries as an input registration, triggers a
// reconfigure, and returns the Registration the caller's Reader handle
// should bind to. On failure the tentative registration is rolled back.
func (e *Engine) OpenReader(ctx context.Context, entries []master.PDOEntry, rate time.Duration) (*Registration, error) {
	reg := &Registration{
		ID:      e.nextRegID.Add(1),
		Kind:    readerRegistration,
		Entries: append([]master.PDOEntry(nil), entries...),
		Rate:    rate,
	}
	e.readerMu.Lock()
	e.readers = append(e.readers, reg)
	e.readerMu.Unlock()

	e.bumpRate(rate)
	e.taskCount.Add(1)

	if err := e.reconfigure(ctx); err != nil {
		e.removeReader(reg.ID)
		e.taskCount.Add(-1)
		return nil, err
	}
	if e.met != nil {
		e.met.ActiveReaders.WithLabelValues(e.iface).Inc()
	}
	return reg, nil
}

// OpenWriter is the output-side symmetric twin of OpenReader.
func (e *Engine) OpenWriter(ctx context.Context, entries []master.PDOEntry, rate time.Duration) (*Registration, error) {
	reg := &Registration{
		ID:      e.nextRegID.Add(1),
		Kind:    writerRegistration,
		Entries: append([]master.PDOEntry(nil), entries...),
		Rate:    rate,
	}
	e.writerMu.Lock()
	e.writers = append(e.writers, reg)
	e.writerMu.Unlock()

	e.bumpRate(rate)
	e.taskCount.Add(1)

	if err := e.reconfigure(ctx); err != nil {
		e.removeWriter(reg.ID)
		e.taskCount.Add(-1)
		return nil, err
	}
	if e.met != nil {
		e.met.ActiveWriters.WithLabelValues(e.iface).Inc()
	}
	return reg, nil
}

// CloseReader unregisters a reader registration and, if this was the last
// handle of either kind, stops the cycle thread.
func (e *Engine) CloseReader(id uint64) {
	e.removeReader(id)
	e.recomputeRate()
	if e.met != nil {
		e.met.ActiveReaders.WithLabelValues(e.iface).Dec()
	}
	e.afterHandleClosed()
}

// CloseWriter is the writer-side twin of CloseReader.
func (e *Engine) CloseWriter(id uint64) {
	e.removeWriter(id)
	e.recomputeRate()
	if e.met != nil {
		e.met.ActiveWriters.WithLabelValues(e.iface).Dec()
	}
	e.afterHandleClosed()
}

func (e *Engine) afterHandleClosed() {
	if e.taskCount.Add(-1) <= 0 {
		e.stopCycle()
	}
}

// bumpRate raises the engine's cycle rate to match rate if rate demands a
// faster cycle (a smaller period) than the current one, per spec.md §4.1:
// "Cycle rate equals the maximum requested sample/execution rate across
// all registrations."
func (e *Engine) bumpRate(rate time.Duration) {
	if rate <= 0 {
		return
	}
	e.rateMu.Lock()
	defer e.rateMu.Unlock()
	if e.rate == 0 || rate < e.rate {
		e.rate = rate
	}
}

// recomputeRate rebuilds the cycle rate from scratch across every live
// registration, used after an un-register so a dropped fast reader lets
// the rate relax, per spec.md §4.1's tie-break policy.
func (e *Engine) recomputeRate() {
	var fastest time.Duration
	e.readerMu.Lock()
	for _, r := range e.readers {
		if r.Rate > 0 && (fastest == 0 || r.Rate < fastest) {
			fastest = r.Rate
		}
	}
	e.readerMu.Unlock()

	e.writerMu.Lock()
	for _, r := range e.writers {
		if r.Rate > 0 && (fastest == 0 || r.Rate < fastest) {
			fastest = r.Rate
		}
	}
	e.writerMu.Unlock()

	e.rateMu.Lock()
	e.rate = fastest
	e.rateMu.Unlock()
}

func (e *Engine) removeReader(id uint64) {
	e.readerMu.Lock()
	defer e.readerMu.Unlock()
	for i, r := range e.readers {
		if r.ID == id {
			e.readers = append(e.readers[:i], e.readers[i+1:]...)
			return
		}
	}
}

func (e *Engine) removeWriter(id uint64) {
	e.writerMu.Lock()
	defer e.writerMu.Unlock()
	for i, r := range e.writers {
		if r.ID == id {
			e.writers = append(e.writers[:i], e.writers[i+1:]...)
			return
		}
	}
}

// Registration looks up a live registration by id, returning a defensive
// copy of its entries/offsets.
func (e *Engine) Registration(id uint64) (entries []master.PDOEntry, offsets []master.Offset, ok bool) {
	e.readerMu.Lock()
	for _, r := range e.readers {
		if r.ID == id {
			e.readerMu.Unlock()
			return copyEntries(r.Entries), copyOffsets(r.Offsets), true
		}
	}
	e.readerMu.Unlock()

	e.writerMu.Lock()
	defer e.writerMu.Unlock()
	for _, r := range e.writers {
		if r.ID == id {
			return copyEntries(r.Entries), copyOffsets(r.Offsets), true
		}
	}
	return nil, nil, false
}

func copyEntries(in []master.PDOEntry) []master.PDOEntry {
	out := make([]master.PDOEntry, len(in))
	copy(out, in)
	return out
}

func copyOffsets(in []master.Offset) []master.Offset {
	out := make([]master.Offset, len(in))
	copy(out, in)
	return out
}

// InputSize returns the current SharedInputBuffer size, for a Reader
// sizing its private buffer.
func (e *Engine) InputSize() int { return e.sib.Size() }

// Snapshot copies the most recently published input image (up to
// len(dst) bytes) into dst. Returns the number of bytes copied.
func (e *Engine) Snapshot(dst []byte) int {
	n, retries := e.sib.Snapshot(dst)
	if retries > 0 && e.met != nil {
		e.met.SeqlockRetriesTotal.WithLabelValues(e.iface).Add(float64(retries))
	}
	return n
}

// LockOutput acquires the staging buffer lock and returns the staging
// buffer for in-place writes, held across an entire Transaction's
// lifetime per spec.md §4.3 "acquires write_mu on construction, releases
// on destruction". Callers must call UnlockOutput exactly once to release it.
func (e *Engine) LockOutput() []byte {
	return e.ob.Lock()
}

// UnlockOutput releases the lock acquired by LockOutput.
func (e *Engine) UnlockOutput() {
	e.ob.Unlock()
}

// WaitEpoch blocks until either a new input publication is observed past
// lastSeenEpoch, the engine starts restarting, the breaker is stopped, or
// 200ms elapses — implementing the predicate in spec.md §4.2 step 1.
func (e *Engine) WaitEpoch(b *xbreaker.Breaker, lastSeenEpoch uint64) (epoch uint64, outcome WaitOutcome) {
	deadline := time.Now().Add(readWaitTimeout)

	e.condMu.Lock()
	defer e.condMu.Unlock()

	for {
		if b != nil && !b.Running() {
			return e.sib.Epoch(), WaitStopped
		}
		if !e.cycleRunning.Load() {
			return e.sib.Epoch(), WaitEngineStopped
		}
		if e.restarting.Load() {
			return e.sib.Epoch(), WaitRestarting
		}
		if e.sib.Epoch() > lastSeenEpoch {
			return e.sib.Epoch(), WaitReady
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return e.sib.Epoch(), WaitTimedOut
		}
		waitOnCondWithTimeout(e.cond, remaining)
	}
}

// waitOnCondWithTimeout wakes the cond's waiter list after d even if no
// Broadcast arrives, so WaitEpoch's 200ms bound is honored without a
// dedicated per-call timer goroutine leaking past the wait.
func waitOnCondWithTimeout(cond *sync.Cond, d time.Duration) {
	done := make(chan struct{})
	wakeTimer := time.AfterFunc(d, func() {
		cond.L.Lock()
		cond.Broadcast()
		cond.L.Unlock()
		close(done)
	})
	cond.Wait()
	wakeTimer.Stop()
	select {
	case <-done:
	default:
	}
}

// stopCycle stops the cycle thread (idempotent) and deactivates the
// master, per spec.md §4.1 "Stop".
func (e *Engine) stopCycle() {
	if !e.cycleRunning.CompareAndSwap(true, false) {
		return
	}
	e.cycleBreaker.Stop()
	e.condMu.Lock()
	e.cond.Broadcast()
	e.condMu.Unlock()
	e.cycleWG.Wait()
	e.master.Deactivate()
}

// Close tears the engine down unconditionally, deactivating the master.
func (e *Engine) Close() {
	e.stopCycle()
}

func fmtErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
