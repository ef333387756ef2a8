// Package execmode selects an execution strategy for loops outside the
// cycle engine (auxiliary subsystems that still need a bounded, breaker-
// aware wait loop but do not warrant a dedicated RT thread), per
// spec.md §4.8.
package execmode

import (
	"time"

	"github.com/R3E-Network/ethercat-engine/ethercat/rtthread"
)

// Mode is one of the five auxiliary-loop execution strategies.
type Mode string

const (
	BusyWait    Mode = "BUSY_WAIT"
	HighRate    Mode = "HIGH_RATE"
	RTEvent     Mode = "RT_EVENT"
	Hybrid      Mode = "HYBRID"
	EventDriven Mode = "EVENT_DRIVEN"
)

const (
	hybridSpin        = 100 * time.Microsecond
	hybridBlockMax    = 10 * time.Millisecond
	eventDrivenBlock  = 100 * time.Millisecond
)

// Select picks a Mode for the given interval, per spec.md §4.8:
//   - no interval (0) → EVENT_DRIVEN
//   - interval < 1ms → RT_EVENT if RT is supported, else HIGH_RATE
//   - 1ms <= interval < 5ms → HYBRID
//   - interval >= 5ms → EVENT_DRIVEN
func Select(interval time.Duration) Mode {
	switch {
	case interval <= 0:
		return EventDriven
	case interval < time.Millisecond:
		if rtSupported() {
			return RTEvent
		}
		return HighRate
	case interval < 5*time.Millisecond:
		return Hybrid
	default:
		return EventDriven
	}
}

func rtSupported() bool {
	caps := rtthread.Capabilities()
	c, ok := caps[rtthread.FeatureSchedFIFO]
	return ok && c.Supported && c.Permitted
}

// WaitParams returns the spin and block durations for an auxiliary loop
// running in mode, so callers don't need to re-derive spec.md's per-mode constants.
func WaitParams(mode Mode) (spin, block time.Duration) {
	switch mode {
	case Hybrid:
		return hybridSpin, hybridBlockMax
	case EventDriven:
		return 0, eventDrivenBlock
	default:
		return 0, 0
	}
}
