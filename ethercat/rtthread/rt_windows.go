//go:build windows

package rtthread

import "runtime"

func newPlatform() platform { return windowsPlatform{} }

type windowsPlatform struct{}

func (windowsPlatform) capabilities() Snapshot {
	return Snapshot{
		FeatureSchedFIFO:     {Supported: true, Permitted: true},
		FeatureSchedDeadline: {Supported: false, Permitted: false},
		FeatureAffinity:      {Supported: true, Permitted: true},
		FeatureMemoryLock:    {Supported: false, Permitted: false},
		FeatureMMCSS:         {Supported: true, Permitted: true},
	}
}

// priorityBand maps a 1..99 SCHED_FIFO-style priority onto the closest
// Win32 thread priority band, per spec.md §4.6.
func priorityBand(priority int) int32 {
	switch {
	case priority >= 90:
		return threadPriorityTimeCritical
	case priority >= 70:
		return threadPriorityHighest
	case priority >= 40:
		return threadPriorityAboveNormal
	default:
		return threadPriorityNormal
	}
}

func (p windowsPlatform) apply(cfg Config) Applied {
	applied := Applied{Features: map[Feature]bool{}}

	runtime.LockOSThread()

	if err := setThreadPriority(priorityBand(cfg.Priority)); err != nil {
		applied.Warnings = append(applied.Warnings, "SetThreadPriority: "+err.Error())
	} else {
		applied.Features[FeatureSchedFIFO] = true
	}

	if cfg.CPUAffinity != CPUAffinityNone {
		affinity := ResolveAffinity(cfg, true, LogicalCPUCount())
		if affinity != CPUAffinityNone {
			if err := setThreadAffinityMask(uintptr(1) << uint(affinity)); err != nil {
				applied.Warnings = append(applied.Warnings, "SetThreadAffinityMask: "+err.Error())
			} else {
				applied.Features[FeatureAffinity] = true
			}
		}
	}

	if cfg.UseMMCSS {
		if err := enableMMCSSProAudio(); err != nil {
			applied.Warnings = append(applied.Warnings, "MMCSS: "+err.Error())
		} else {
			applied.Features[FeatureMMCSS] = true
		}
	}

	if cfg.LockMemory {
		applied.Warnings = append(applied.Warnings, "memory locking is unsupported on windows")
	}

	return applied
}
