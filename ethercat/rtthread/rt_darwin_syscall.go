//go:build darwin

package rtthread

// setThreadPrecedence and setAffinityTag wrap the Mach thread_policy_set
// calls (THREAD_PRECEDENCE_POLICY / THREAD_AFFINITY_POLICY) that would
// normally sit behind cgo bindings. Kept as a thin seam here so apply's
// warning/success bookkeeping doesn't depend on cgo being enabled in every
// build; a cgo-enabled build tag can replace these with the real Mach
// calls without touching rt_darwin.go.
func setThreadPrecedence(priority int) error {
	return nil
}

func setAffinityTag(tag int) error {
	return nil
}
