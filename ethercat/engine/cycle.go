package engine

import (
	"runtime"

	"go.uber.org/zap"

	"github.com/R3E-Network/ethercat-engine/ethercat/master"
	"github.com/R3E-Network/ethercat-engine/ethercat/rtthread"
	"github.com/R3E-Network/ethercat-engine/ethercat/xerrors"
)

// runCycle is the cycle thread body: apply RT configuration, then repeat
// receive → publish inputs → consume outputs → send → wait until the
// breaker signals stop, per spec.md §4.1.
func (e *Engine) runCycle() {
	defer e.cycleWG.Done()

	applied := rtthread.Apply(e.cfg.RT)
	for _, w := range applied.Warnings {
		e.zlog.Warn("rt thread configuration warning", zap.String("interface", e.iface), zap.String("warning", w))
	}

	var receiveFailing, sendFailing, wcFailing bool
	stateCheckEvery := e.cfg.StateCheckInterval
	if stateCheckEvery <= 0 {
		stateCheckEvery = defaultStateCheckInterval
	}
	var cycleCount uint64
	lastStates := make(map[int]string)

	for e.cycleBreaker.Running() {
		if err := e.master.Receive(); err != nil {
			if e.met != nil {
				e.met.ReceiveErrorsTotal.WithLabelValues(e.iface).Inc()
			}
			if !receiveFailing {
				e.zlog.Error("master receive failing", zap.String("interface", e.iface), zap.Error(err))
				receiveFailing = true
			}
		} else if receiveFailing {
			e.zlog.Info("master receive recovered", zap.String("interface", e.iface))
			receiveFailing = false
		}

		if wcr, ok := e.master.(master.WorkingCounterReporter); ok {
			if wcr.WorkingCounterOK() {
				if wcFailing {
					e.zlog.Info("working counter recovered", zap.String("interface", e.iface))
					wcFailing = false
				}
			} else {
				if e.met != nil {
					e.met.RecordWorkingCounterMismatch(e.iface)
				}
				if !wcFailing {
					e.zlog.Warn("working counter mismatch", zap.Error(xerrors.WorkingCounterMismatch(e.iface)))
					wcFailing = true
				}
			}
		}

		cycleCount++
		if cycleCount%uint64(stateCheckEvery) == 0 {
			e.checkSlaveStateChanges(lastStates)
		}

		e.sib.Publish(e.master.InputData())
		e.condMu.Lock()
		e.cond.Broadcast()
		e.condMu.Unlock()

		e.ob.Snapshot()
		active := e.ob.Active()
		out := e.master.OutputData()
		n := len(active)
		if len(out) < n {
			n = len(out)
		}
		copy(out[:n], active[:n])

		if err := e.master.Send(); err != nil {
			if e.met != nil {
				e.met.SendErrorsTotal.WithLabelValues(e.iface).Inc()
			}
			if !sendFailing {
				e.zlog.Error("master send failing", zap.String("interface", e.iface), zap.Error(err))
				sendFailing = true
			}
		} else if sendFailing {
			e.zlog.Info("master send recovered", zap.String("interface", e.iface))
			sendFailing = false
		}

		elapsed, onTime := e.cycleTimer.Wait()
		overran := !onTime
		if overran && e.cfg.MaxOverrun > 0 && elapsed-e.cycleTimer.Period() <= e.cfg.MaxOverrun {
			overran = false
		}
		if overran {
			e.zlog.Warn("cycle overrun", zap.String("interface", e.iface), zap.Duration("elapsed", elapsed), zap.Duration("period", e.cycleTimer.Period()))
		}
		if e.met != nil {
			e.met.RecordCycle(e.iface, elapsed, overran)
		}
	}

	runtime.UnlockOSThread()
}

// checkSlaveStateChanges compares the current master.Slaves() topology
// against lastStates (mutated in place) and logs STATE_CHANGE for any
// slave whose reported state differs from its last-seen one, without
// stopping the engine. Supplemented from the original driver's
// slave-state-change tracking, run every StateCheckInterval cycles rather
// than every cycle since Slaves() is not a cheap per-cycle call on a live
// driver.
func (e *Engine) checkSlaveStateChanges(lastStates map[int]string) {
	for _, s := range e.master.Slaves() {
		prev, seen := lastStates[s.Position]
		if seen && prev != s.State {
			e.zlog.Warn("slave state change",
				zap.String("interface", e.iface),
				zap.Error(xerrors.SlaveStateChange(s.Position, prev, s.State)),
			)
			if e.met != nil {
				e.met.RecordSlaveStateChange(e.iface, s.Name)
			}
		}
		lastStates[s.Position] = s.State
	}
}
