package rtthread

import "testing"

func TestResolveAffinity_AutoRTLikeMultiCore(t *testing.T) {
	cfg := Config{CPUAffinity: CPUAffinityAuto}
	got := ResolveAffinity(cfg, true, 4)
	if got != 3 {
		t.Fatalf("expected last core (3), got %d", got)
	}
}

func TestResolveAffinity_AutoNonRTLike(t *testing.T) {
	cfg := Config{CPUAffinity: CPUAffinityAuto}
	got := ResolveAffinity(cfg, false, 4)
	if got != CPUAffinityNone {
		t.Fatalf("expected CPUAffinityNone, got %d", got)
	}
}

func TestResolveAffinity_AutoSingleCore(t *testing.T) {
	cfg := Config{CPUAffinity: CPUAffinityAuto}
	got := ResolveAffinity(cfg, true, 1)
	if got != CPUAffinityNone {
		t.Fatalf("expected CPUAffinityNone for single core, got %d", got)
	}
}

func TestResolveAffinity_ExplicitPassesThrough(t *testing.T) {
	cfg := Config{CPUAffinity: 2}
	got := ResolveAffinity(cfg, true, 8)
	if got != 2 {
		t.Fatalf("expected explicit value 2, got %d", got)
	}
}

func TestApply_DisabledIsNoop(t *testing.T) {
	applied := Apply(Config{Enabled: false})
	if len(applied.Features) != 0 {
		t.Fatalf("expected no features applied when disabled, got %v", applied.Features)
	}
}

func TestCapabilities_ReturnsSnapshot(t *testing.T) {
	snap := Capabilities()
	if snap == nil {
		t.Fatal("expected non-nil capability snapshot")
	}
}
