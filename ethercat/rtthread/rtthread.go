// Package rtthread applies real-time scheduling, CPU affinity, and memory
// locking to the calling goroutine's underlying OS thread, with
// platform-specific implementations behind a single contract, per
// spec.md §4.6.
package rtthread

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

const (
	// CPUAffinityAuto resolves to the last hardware core when an RT-like
	// execution mode is in effect and more than one core exists.
	CPUAffinityAuto = -1
	// CPUAffinityNone disables affinity pinning entirely.
	CPUAffinityNone = -2
)

// Config carries the RT thread request, per spec.md's "Configuration
// surface" (rt.* fields).
type Config struct {
	Enabled                 bool
	Priority                int // 1..99, SCHED_FIFO-style
	CPUAffinity             int // >=0 explicit core, CPUAffinityAuto, CPUAffinityNone
	LockMemory              bool
	Period                  time.Duration
	Computation             time.Duration
	Deadline                time.Duration
	PreferDeadlineScheduler bool
	UseMMCSS                bool
}

// Feature names a single applicable capability, used both in the
// capability snapshot and in apply's warning log.
type Feature string

const (
	FeatureSchedFIFO     Feature = "sched_fifo"
	FeatureSchedDeadline Feature = "sched_deadline"
	FeatureAffinity      Feature = "cpu_affinity"
	FeatureMemoryLock    Feature = "memory_lock"
	FeatureMMCSS         Feature = "mmcss"
)

// Capability reports whether a Feature is supported by the current OS
// build and permitted under the current process's privileges.
type Capability struct {
	Supported bool
	Permitted bool
}

// Snapshot is the full per-platform capability report.
type Snapshot map[Feature]Capability

// Applied is the outcome of Apply: which features the platform reported as
// applied, and any non-fatal warnings encountered along the way. The darwin
// Mach thread-policy calls and the windows MMCSS registration are no-ops
// that return nil, so on those platforms the matching features are reported
// as applied without the thread's scheduling having changed.
type Applied struct {
	Features map[Feature]bool
	Warnings []string
}

// platform is implemented once per OS in rt_<os>.go.
type platform interface {
	capabilities() Snapshot
	apply(cfg Config) Applied
}

var current platform = newPlatform()

// Capabilities returns the current platform's capability snapshot.
func Capabilities() Snapshot {
	return current.capabilities()
}

// Apply best-effort applies every feature in cfg that the platform both
// supports and permits. It never hard-fails: anything it cannot do is
// recorded as a warning, not an error, per spec.md's "apply(cfg)...always
// returns success unless the platform explicitly reports a fatal error".
func Apply(cfg Config) Applied {
	if !cfg.Enabled {
		return Applied{Features: map[Feature]bool{}}
	}
	return current.apply(cfg)
}

// ResolveAffinity computes the effective CPU affinity for cfg.CPUAffinity,
// resolving CPUAffinityAuto to the last hardware core when rtLikeMode is
// true and numCPU > 1, otherwise to CPUAffinityNone, per spec.md §4.6. This
// resolution is platform-independent, unlike the rest of the package.
func ResolveAffinity(cfg Config, rtLikeMode bool, numCPU int) int {
	if cfg.CPUAffinity != CPUAffinityAuto {
		return cfg.CPUAffinity
	}
	if rtLikeMode && numCPU > 1 {
		return numCPU - 1
	}
	return CPUAffinityNone
}

// LogicalCPUCount reports the number of logical cores visible to the
// process, for ResolveAffinity's numCPU argument. Uses gopsutil rather than
// runtime.NumCPU so it reflects container CPU quotas the same way the
// engine's other host-introspection paths do; falls back to 1 if the host
// can't be queried.
func LogicalCPUCount() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return 1
	}
	return n
}
