package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestNewWithRegistry_Isolated(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.RecordCycle("eth0", 500*time.Microsecond, false)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestRecordCycle_CountsOverruns(t *testing.T) {
	m := NewWithRegistry(nil)
	m.RecordCycle("eth0", time.Millisecond, true)
	m.RecordCycle("eth0", time.Millisecond, false)

	var out dto.Metric
	require.NoError(t, m.CycleOverrunsTotal.WithLabelValues("eth0").Write(&out))
	require.Equal(t, float64(1), out.GetCounter().GetValue())
}

func TestRecordWorkingCounterMismatch_Increments(t *testing.T) {
	m := NewWithRegistry(nil)
	m.RecordWorkingCounterMismatch("eth0")
	m.RecordWorkingCounterMismatch("eth0")

	var out dto.Metric
	require.NoError(t, m.WorkingCounterMismatchesTotal.WithLabelValues("eth0").Write(&out))
	require.Equal(t, float64(2), out.GetCounter().GetValue())
}

func TestRecordSlaveStateChange_LabelsBySlave(t *testing.T) {
	m := NewWithRegistry(nil)
	m.RecordSlaveStateChange("eth0", "drive-1")

	var out dto.Metric
	require.NoError(t, m.SlaveStateChangesTotal.WithLabelValues("eth0", "drive-1").Write(&out))
	require.Equal(t, float64(1), out.GetCounter().GetValue())
}

func TestRecordReconfigure_TracksRetries(t *testing.T) {
	m := NewWithRegistry(nil)
	m.RecordReconfigure("eth0", "success", 3, 250*time.Millisecond)

	var out dto.Metric
	require.NoError(t, m.ReconfigureRetries.WithLabelValues("eth0").Write(&out))
	require.Equal(t, float64(3), out.GetCounter().GetValue())
}
