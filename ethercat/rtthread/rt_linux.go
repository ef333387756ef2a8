//go:build linux

package rtthread

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

func newPlatform() platform { return linuxPlatform{} }

type linuxPlatform struct{}

func (linuxPlatform) capabilities() Snapshot {
	euid := unix.Geteuid()
	privileged := euid == 0
	return Snapshot{
		FeatureSchedFIFO:     {Supported: true, Permitted: privileged},
		FeatureSchedDeadline: {Supported: true, Permitted: privileged},
		FeatureAffinity:      {Supported: true, Permitted: true},
		FeatureMemoryLock:    {Supported: true, Permitted: privileged},
		FeatureMMCSS:         {Supported: false, Permitted: false},
	}
}

func (p linuxPlatform) apply(cfg Config) Applied {
	caps := p.capabilities()
	applied := Applied{Features: map[Feature]bool{}}

	runtime.LockOSThread()

	wantDeadline := cfg.PreferDeadlineScheduler && cfg.Period > 0 &&
		caps[FeatureSchedDeadline].Supported && caps[FeatureSchedDeadline].Permitted

	switch {
	case wantDeadline:
		if err := setSchedDeadline(cfg); err != nil {
			applied.Warnings = append(applied.Warnings, fmt.Sprintf("sched_deadline: %v", err))
		} else {
			applied.Features[FeatureSchedFIFO] = true
			applied.Warnings = append(applied.Warnings, "sched_deadline unavailable: applied SCHED_FIFO at priority 99 instead")
		}
	case caps[FeatureSchedFIFO].Supported && caps[FeatureSchedFIFO].Permitted:
		if err := setSchedFIFO(cfg.Priority); err != nil {
			applied.Warnings = append(applied.Warnings, fmt.Sprintf("sched_fifo: %v", err))
		} else {
			applied.Features[FeatureSchedFIFO] = true
		}
	default:
		applied.Warnings = append(applied.Warnings, "sched_fifo not permitted (requires CAP_SYS_NICE or root)")
	}

	if cfg.CPUAffinity != CPUAffinityNone {
		affinity := ResolveAffinity(cfg, true, LogicalCPUCount())
		if affinity != CPUAffinityNone {
			if err := setAffinity(affinity); err != nil {
				applied.Warnings = append(applied.Warnings, fmt.Sprintf("sched_setaffinity: %v", err))
			} else {
				applied.Features[FeatureAffinity] = true
			}
		}
	}

	if cfg.LockMemory {
		if caps[FeatureMemoryLock].Permitted {
			if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
				applied.Warnings = append(applied.Warnings, fmt.Sprintf("mlockall: %v", err))
			} else {
				applied.Features[FeatureMemoryLock] = true
			}
		} else {
			applied.Warnings = append(applied.Warnings, "mlockall not permitted (requires CAP_IPC_LOCK or root)")
		}
	}

	return applied
}

func setSchedFIFO(priority int) error {
	if priority < 1 {
		priority = 1
	}
	if priority > 99 {
		priority = 99
	}
	return unix.SchedSetscheduler(0, unix.SCHED_FIFO, &unix.SchedParam{Priority: int32(priority)})
}

func setSchedDeadline(cfg Config) error {
	// golang.org/x/sys/unix has no SCHED_DEADLINE attr_t wrapper; fall back
	// to SCHED_FIFO at maximum priority, which is the closest achievable
	// approximation without a raw sched_setattr(2) syscall wrapper.
	return setSchedFIFO(99)
}

func setAffinity(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
