package engine

import (
	"context"
	"time"

	"github.com/R3E-Network/ethercat-engine/ethercat/master"
	"github.com/R3E-Network/ethercat-engine/ethercat/timer"
	"github.com/R3E-Network/ethercat-engine/ethercat/xbreaker"
	"github.com/R3E-Network/ethercat-engine/ethercat/xerrors"
	"github.com/R3E-Network/ethercat-engine/internal/telemetry"
)

// reconfigure runs the stop → re-register-all → activate algorithm from
// spec.md §4.1, serialized one-at-a-time via reconfigureMu. It is called
// by OpenReader/OpenWriter after appending a tentative registration.
func (e *Engine) reconfigure(ctx context.Context) error {
	e.reconfigureMu.Lock()
	defer e.reconfigureMu.Unlock()

	start := time.Now()
	ctx = telemetry.WithInterface(ctx, e.iface)
	ctx = telemetry.WithNewReconfigureID(ctx)

	wasRunning := e.cycleRunning.Load()
	if wasRunning {
		e.restarting.Store(true)
		e.condMu.Lock()
		e.cond.Broadcast()
		e.condMu.Unlock()
		e.cycleBreaker.Stop()
		e.cycleWG.Wait()
		e.master.Deactivate()
		e.cycleRunning.Store(false)
	}

	allEntries := e.collectAllEntries()

	e.log.LogReconfigureStart(ctx, e.countReaders(), e.countWriters())

	retryBreaker := xbreaker.New(xbreaker.DefaultConfig())
	err := xbreaker.Retry(retryBreaker, func() error {
		if err := e.master.Initialize(ctx); err != nil {
			e.master.Deactivate()
			return xerrors.MasterInit(err)
		}
		if err := e.master.RegisterPDOs(allEntries); err != nil {
			e.master.Deactivate()
			return xerrors.PDOMapping(err)
		}
		if err := e.master.Activate(ctx); err != nil {
			e.master.Deactivate()
			return xerrors.Activation(err)
		}
		return nil
	})

	if err != nil {
		e.restarting.Store(false)
		e.log.LogReconfigureResult(ctx, retryBreaker.Attempt(), time.Since(start), err)
		if e.met != nil {
			e.met.RecordReconfigure(e.iface, "failure", retryBreaker.Attempt(), time.Since(start))
		}
		return err
	}
	e.initialized = true

	e.applyResolvedOffsets()

	e.configGen.Add(1)
	e.restarting.Store(false)
	if e.met != nil {
		e.met.RecordReconfigure(e.iface, "success", retryBreaker.Attempt(), time.Since(start))
		e.met.ConfigGeneration.WithLabelValues(e.iface).Set(float64(e.configGen.Load()))
	}
	e.log.LogReconfigureResult(ctx, retryBreaker.Attempt(), time.Since(start), nil)

	e.startCycle()
	return nil
}

// collectAllEntries concatenates every reader's and every writer's
// entries, in registration order, per spec.md §4.1 step 2.
func (e *Engine) collectAllEntries() []master.PDOEntry {
	var all []master.PDOEntry

	e.readerMu.Lock()
	for _, r := range e.readers {
		all = append(all, r.Entries...)
	}
	e.readerMu.Unlock()

	e.writerMu.Lock()
	for _, r := range e.writers {
		all = append(all, r.Entries...)
	}
	e.writerMu.Unlock()

	return all
}

func (e *Engine) countReaders() int {
	e.readerMu.Lock()
	defer e.readerMu.Unlock()
	return len(e.readers)
}

func (e *Engine) countWriters() int {
	e.writerMu.Lock()
	defer e.writerMu.Unlock()
	return len(e.writers)
}

// applyResolvedOffsets implements spec.md §4.1 step 4: resize the SIB and
// output buffers to the master's new image sizes, and re-resolve every
// registration's offsets against the new topology.
func (e *Engine) applyResolvedOffsets() {
	e.sib.Resize(len(e.master.InputData()))
	e.ob.Resize(len(e.master.OutputData()))

	e.readerMu.Lock()
	for _, r := range e.readers {
		r.Offsets = resolveOffsets(e.master, r.Entries)
	}
	e.readerMu.Unlock()

	e.writerMu.Lock()
	for _, r := range e.writers {
		r.Offsets = resolveOffsets(e.master, r.Entries)
	}
	e.writerMu.Unlock()
}

func resolveOffsets(m master.Master, entries []master.PDOEntry) []master.Offset {
	offsets := make([]master.Offset, len(entries))
	for i, entry := range entries {
		off, err := m.PDOOffset(entry)
		if err != nil {
			continue // leave zero-value offset; readers/writers tolerate stale offsets across races
		}
		offsets[i] = off
	}
	return offsets
}

// startCycle launches the cycle thread. Callers must hold reconfigureMu
// (or otherwise guarantee no concurrent reconfigure) and must have already
// applied offsets and resized buffers.
func (e *Engine) startCycle() {
	rate := e.CycleRate()
	if rate <= 0 {
		rate = time.Millisecond
	}
	e.cycleBreaker.Start()
	e.cycleTimer = timer.New(rate)
	e.cycleRunning.Store(true)
	e.cycleWG.Add(1)
	go e.runCycle()
}
