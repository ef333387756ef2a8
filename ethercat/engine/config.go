package engine

import (
	"time"

	"github.com/R3E-Network/ethercat-engine/ethercat/rtthread"
)

// Config is the per-engine configuration surface from spec.md §6: the
// overrun threshold and the full RT thread request.
type Config struct {
	// MaxOverrun, if nonzero, suppresses overrun logging unless
	// elapsed-period exceeds this threshold.
	MaxOverrun time.Duration

	// StateCheckInterval is how many cycles elapse between slave-state
	// comparisons (the original driver's STATE_CHANGE supplement, see
	// cycle.go). Checking every cycle is wasteful; 0 uses the default.
	StateCheckInterval int

	RT rtthread.Config
}

// defaultStateCheckInterval matches the original driver's comment that
// checking slave state every cycle is too costly: every 8th cycle instead.
const defaultStateCheckInterval = 8

// DefaultConfig matches the specification's illustrative defaults: RT
// disabled (opt-in), no overrun suppression.
func DefaultConfig() Config {
	return Config{
		MaxOverrun:         0,
		StateCheckInterval: defaultStateCheckInterval,
		RT: rtthread.Config{
			Enabled:     false,
			Priority:    80,
			CPUAffinity: rtthread.CPUAffinityAuto,
		},
	}
}
