package telemetry

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		component string
		level     string
		format    string
	}{
		{"json logger", "engine", "info", "json"},
		{"text logger", "pool", "debug", "text"},
		{"invalid level", "engine", "bogus", "json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.component, tt.level, tt.format)
			if logger == nil {
				t.Fatal("New() returned nil")
			}
			if logger.component != tt.component {
				t.Errorf("component = %v, want %v", logger.component, tt.component)
			}
		})
	}
}

func TestLogger_WithContext(t *testing.T) {
	logger := New("engine", "info", "json")
	ctx := context.Background()
	ctx = WithInterface(ctx, "eth0")
	ctx = WithGeneration(ctx, 4)

	entry := logger.WithContext(ctx)
	if entry.Data["component"] != "engine" {
		t.Errorf("component field = %v, want engine", entry.Data["component"])
	}
	if entry.Data["interface"] != "eth0" {
		t.Errorf("interface field = %v, want eth0", entry.Data["interface"])
	}
	if entry.Data["config_gen"] != uint64(4) {
		t.Errorf("config_gen field = %v, want 4", entry.Data["config_gen"])
	}
}

func TestLogger_WithError(t *testing.T) {
	var buf bytes.Buffer
	logger := New("pool", "info", "json")
	logger.SetOutput(&buf)
	logger.WithError(errors.New("boom")).Error("discover failed")

	if buf.Len() == 0 {
		t.Fatal("expected log output")
	}
}

func TestLogger_LogReconfigureResult(t *testing.T) {
	var buf bytes.Buffer
	logger := New("engine", "info", "json")
	logger.SetOutput(&buf)

	logger.LogReconfigureResult(context.Background(), 3, 0, nil)
	if buf.Len() == 0 {
		t.Fatal("expected log output on success")
	}

	buf.Reset()
	logger.LogReconfigureResult(context.Background(), 10, 0, errors.New("activation failed"))
	if buf.Len() == 0 {
		t.Fatal("expected log output on failure")
	}
}
