package engine

import (
	"context"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/ethercat-engine/ethercat/master"
	"github.com/R3E-Network/ethercat-engine/ethercat/master/mock"
	"github.com/R3E-Network/ethercat-engine/internal/metrics"
)

func newTestMaster() *mock.Master {
	return mock.New("eth0-test", []master.SlaveInfo{{Position: 0, Name: "test-slave"}}, 4, 4)
}

func TestOpenReader_StartsCycleAndResolvesOffsets(t *testing.T) {
	m := newTestMaster()
	entry := master.PDOEntry{Slave: 0, Index: 0x6000, Subindex: 1, BitLength: 16, Direction: master.Input}
	m.MapOffset(entry, master.Offset{Byte: 0, Bit: 0})

	e := New("eth0-test", m, DefaultConfig(), nil)
	defer e.Close()

	reg, err := e.OpenReader(context.Background(), []master.PDOEntry{entry}, 2*time.Millisecond)
	require.NoError(t, err)
	require.True(t, e.Running())
	require.Equal(t, master.Offset{Byte: 0, Bit: 0}, reg.Offsets[0])
	require.Equal(t, 2*time.Millisecond, e.CycleRate())

	require.Eventually(t, func() bool { return m.ReceiveCount() > 2 }, time.Second, time.Millisecond)
}

func TestCycleRate_TracksFastestRegistration(t *testing.T) {
	m := newTestMaster()
	e := New("eth0-test", m, DefaultConfig(), nil)
	defer e.Close()

	entryA := master.PDOEntry{Slave: 0, Index: 0x6000, Subindex: 1, BitLength: 8, Direction: master.Input}
	entryB := master.PDOEntry{Slave: 0, Index: 0x6001, Subindex: 1, BitLength: 8, Direction: master.Input}
	m.MapOffset(entryA, master.Offset{Byte: 0})
	m.MapOffset(entryB, master.Offset{Byte: 1})

	regA, err := e.OpenReader(context.Background(), []master.PDOEntry{entryA}, 10*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 10*time.Millisecond, e.CycleRate())

	_, err = e.OpenReader(context.Background(), []master.PDOEntry{entryB}, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, time.Millisecond, e.CycleRate(), "cycle rate should track the fastest registration")

	e.CloseReader(regA.ID)
	require.Equal(t, time.Millisecond, e.CycleRate(), "dropping the slower registration must not change the rate")
}

func TestCloseReader_RecomputesRateAfterFastestDrops(t *testing.T) {
	m := newTestMaster()
	e := New("eth0-test", m, DefaultConfig(), nil)
	defer e.Close()

	entryA := master.PDOEntry{Slave: 0, Index: 0x6000, Subindex: 1, BitLength: 8, Direction: master.Input}
	entryB := master.PDOEntry{Slave: 0, Index: 0x6001, Subindex: 1, BitLength: 8, Direction: master.Input}
	m.MapOffset(entryA, master.Offset{Byte: 0})
	m.MapOffset(entryB, master.Offset{Byte: 1})

	regA, err := e.OpenReader(context.Background(), []master.PDOEntry{entryA}, time.Millisecond)
	require.NoError(t, err)
	_, err = e.OpenReader(context.Background(), []master.PDOEntry{entryB}, 10*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, time.Millisecond, e.CycleRate())

	e.CloseReader(regA.ID)
	require.Equal(t, 10*time.Millisecond, e.CycleRate(), "the rate must relax once the fast reader is gone")
}

func TestOpenReader_RollsBackRegistrationOnPermanentFailure(t *testing.T) {
	if testing.Short() {
		t.Skip("exercises the full 10-retry backoff schedule")
	}
	m := newTestMaster()
	m.FailNextRegisterPDOs(someErr, true)

	e := New("eth0-test", m, DefaultConfig(), nil)
	defer e.Close()

	entry := master.PDOEntry{Slave: 0, Index: 0x6000, Subindex: 1, BitLength: 8, Direction: master.Input}
	_, err := e.OpenReader(context.Background(), []master.PDOEntry{entry}, time.Millisecond)
	require.Error(t, err)
	require.False(t, e.Running())

	entries, _, ok := e.Registration(1)
	require.False(t, ok, "a failed registration must be rolled back")
	require.Nil(t, entries)
}

func TestLastHandleClose_StopsCycle(t *testing.T) {
	m := newTestMaster()
	entry := master.PDOEntry{Slave: 0, Index: 0x6000, Subindex: 1, BitLength: 8, Direction: master.Input}
	m.MapOffset(entry, master.Offset{Byte: 0})

	e := New("eth0-test", m, DefaultConfig(), nil)
	defer e.Close()

	reg, err := e.OpenReader(context.Background(), []master.PDOEntry{entry}, time.Millisecond)
	require.NoError(t, err)
	require.True(t, e.Running())

	e.CloseReader(reg.ID)
	require.False(t, e.Running())
}

func TestWaitEpoch_ReportsEngineStoppedWithNoRegistrations(t *testing.T) {
	m := newTestMaster()
	e := New("eth0-test", m, DefaultConfig(), nil)
	defer e.Close()

	_, outcome := e.WaitEpoch(nil, 0)
	require.Equal(t, WaitEngineStopped, outcome, "with no caller breaker and no cycle thread running, the engine itself is the one that's stopped")
}

func TestRunCycle_ReportsWorkingCounterMismatchAndSlaveStateChange(t *testing.T) {
	m := newTestMaster()
	entry := master.PDOEntry{Slave: 0, Index: 0x6000, Subindex: 1, BitLength: 8, Direction: master.Input}
	m.MapOffset(entry, master.Offset{Byte: 0})

	met := metrics.NewWithRegistry(nil)
	cfg := DefaultConfig()
	cfg.StateCheckInterval = 1
	e := New("eth0-test", m, cfg, met)
	defer e.Close()

	_, err := e.OpenReader(context.Background(), []master.PDOEntry{entry}, time.Millisecond)
	require.NoError(t, err)

	m.SetWorkingCounterOK(false)
	m.SetSlaveState(0, "SAFEOP")

	require.Eventually(t, func() bool {
		var out dto.Metric
		if err := met.WorkingCounterMismatchesTotal.WithLabelValues("eth0-test").Write(&out); err != nil {
			return false
		}
		return out.GetCounter().GetValue() > 0
	}, time.Second, time.Millisecond, "expected a working counter mismatch to be recorded")

	require.Eventually(t, func() bool {
		var out dto.Metric
		if err := met.SlaveStateChangesTotal.WithLabelValues("eth0-test", "test-slave").Write(&out); err != nil {
			return false
		}
		return out.GetCounter().GetValue() > 0
	}, time.Second, time.Millisecond, "expected the slave state transition to be recorded")
}

var someErr = &testError{"register failed"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
