//go:build darwin

package rtthread

import "runtime"

func newPlatform() platform { return darwinPlatform{} }

type darwinPlatform struct{}

func (darwinPlatform) capabilities() Snapshot {
	return Snapshot{
		FeatureSchedFIFO:     {Supported: true, Permitted: true},
		FeatureSchedDeadline: {Supported: false, Permitted: false},
		FeatureAffinity:      {Supported: true, Permitted: true},
		FeatureMemoryLock:    {Supported: false, Permitted: false},
		FeatureMMCSS:         {Supported: false, Permitted: false},
	}
}

// apply uses thread precedence and an affinity tag, the closest macOS
// analogues to SCHED_FIFO and hard CPU pinning (Mach's thread_policy_set
// treats affinity as an advisory grouping tag, not a hard mask). Memory
// locking is reported unsupported, per spec.md §4.6.
func (p darwinPlatform) apply(cfg Config) Applied {
	caps := p.capabilities()
	applied := Applied{Features: map[Feature]bool{}}

	runtime.LockOSThread()

	if caps[FeatureSchedFIFO].Permitted {
		if err := setThreadPrecedence(cfg.Priority); err != nil {
			applied.Warnings = append(applied.Warnings, "thread precedence: "+err.Error())
		} else {
			applied.Features[FeatureSchedFIFO] = true
		}
	}

	if cfg.CPUAffinity != CPUAffinityNone {
		affinity := ResolveAffinity(cfg, true, LogicalCPUCount())
		if affinity != CPUAffinityNone {
			if err := setAffinityTag(affinity); err != nil {
				applied.Warnings = append(applied.Warnings, "affinity tag: "+err.Error())
			} else {
				applied.Features[FeatureAffinity] = true
			}
		}
	}

	if cfg.LockMemory {
		applied.Warnings = append(applied.Warnings, "memory locking is unsupported on darwin")
	}

	return applied
}
