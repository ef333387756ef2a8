// Package timer implements the precise cycle timer described in
// spec.md §4.7: a monotonic busy/sleep hybrid that targets a fixed period
// and reports whether each wait completed on time.
package timer

import "time"

// spinThreshold is how far ahead of the deadline the timer stops sleeping
// and starts spinning, trading a short burst of CPU for sub-millisecond
// accuracy that time.Sleep alone cannot guarantee.
const spinThreshold = 1500 * time.Microsecond

// Timer waits until the next multiple of period since construction.
type Timer struct {
	period time.Duration
	start  time.Time
	next   time.Time
	now    func() time.Time
	sleep  func(time.Duration)
}

// New constructs a Timer with the given period, anchored at the current
// monotonic time.
func New(period time.Duration) *Timer {
	return newWithClock(period, time.Now, time.Sleep)
}

func newWithClock(period time.Duration, now func() time.Time, sleep func(time.Duration)) *Timer {
	start := now()
	return &Timer{
		period: period,
		start:  start,
		next:   start.Add(period),
		now:    now,
		sleep:  sleep,
	}
}

// Wait blocks until the next period boundary, combining a coarse sleep
// phase with a final spin phase to approach sub-millisecond accuracy
// without permanently burning a core. It returns the elapsed time since
// the previous boundary and whether the wait completed within period
// (on_time); a false on_time signals a cycle overrun to the caller.
func (t *Timer) Wait() (elapsed time.Duration, onTime bool) {
	cycleStart := t.now()

	remaining := t.next.Sub(cycleStart)
	if remaining > spinThreshold {
		t.sleep(remaining - spinThreshold)
	}
	for t.now().Before(t.next) {
		// spin phase: burn the last ~1.5ms for accuracy
	}

	now := t.now()
	elapsed = now.Sub(t.next.Add(-t.period))
	onTime = !now.After(t.next.Add(t.period))

	// advance to the next boundary regardless of overrun, so a slow cycle
	// does not compound into permanent drift
	missed := now.Sub(t.next)
	skips := missed / t.period
	t.next = t.next.Add(t.period * (skips + 1))

	return elapsed, onTime
}

// Period returns the configured cycle period.
func (t *Timer) Period() time.Duration {
	return t.period
}
