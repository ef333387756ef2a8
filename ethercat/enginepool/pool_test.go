package enginepool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/ethercat-engine/ethercat/engine"
	"github.com/R3E-Network/ethercat-engine/ethercat/master"
	"github.com/R3E-Network/ethercat-engine/ethercat/master/mock"
)

func factoryFor(slaves []master.SlaveInfo) Factory {
	return func(ifaceName string) (master.Master, error) {
		return mock.New(ifaceName, slaves, 4, 4), nil
	}
}

func TestAcquire_ReusesEngineForSameInterface(t *testing.T) {
	p := New(factoryFor(nil), nil)
	defer p.Close()

	e1, err := p.Acquire(context.Background(), "eth0", "soem", engine.DefaultConfig())
	require.NoError(t, err)
	e2, err := p.Acquire(context.Background(), "eth0", "soem", engine.DefaultConfig())
	require.NoError(t, err)
	require.Same(t, e1, e2)
}

func TestAcquire_IGHBackendCollapsesAllInterfaces(t *testing.T) {
	p := New(factoryFor(nil), nil)
	defer p.Close()

	e1, err := p.Acquire(context.Background(), "eth0", "igh", engine.DefaultConfig())
	require.NoError(t, err)
	e2, err := p.Acquire(context.Background(), "eth1", "igh", engine.DefaultConfig())
	require.NoError(t, err)
	require.Same(t, e1, e2, "the igh backend shares one engine across every interface")
}

func TestDiscoverSlaves_ReturnsTopologyWithoutActivating(t *testing.T) {
	slaves := []master.SlaveInfo{{Position: 0, Name: "drive-1"}, {Position: 1, Name: "drive-2"}}
	p := New(factoryFor(slaves), nil)
	defer p.Close()

	got, err := p.DiscoverSlaves(context.Background(), "eth0", engine.DefaultConfig())
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.False(t, p.IsActive("eth0"), "discovery alone must not start cyclic exchange")
}

func TestAcquire_ConstructionFailurePropagates(t *testing.T) {
	wantErr := errors.New("nic not found")
	factory := func(ifaceName string) (master.Master, error) { return nil, wantErr }

	p := New(factory, nil)
	defer p.Close()

	_, err := p.Acquire(context.Background(), "eth9", "soem", engine.DefaultConfig())
	require.ErrorIs(t, err, wantErr)
}

func TestIsActive_FalseForUnknownInterface(t *testing.T) {
	p := New(factoryFor(nil), nil)
	defer p.Close()
	require.False(t, p.IsActive("ethX"))
}

func TestEvictIdle_RemovesEngineAfterThresholdOnce(t *testing.T) {
	p := New(factoryFor(nil), nil)
	defer p.Close()

	e, err := p.Acquire(context.Background(), "eth0", "soem", engine.DefaultConfig())
	require.NoError(t, err)
	require.False(t, e.Running(), "an acquired-but-unused engine has no open handles, so no cycle thread")

	// evictIdle only marks lastIdleSince on its first observation, then
	// removes the entry once idleEvictionThreshold has elapsed since.
	p.evictIdle()
	p.mu.Lock()
	ent, ok := p.engines["eth0"]
	p.mu.Unlock()
	require.True(t, ok)
	require.False(t, ent.lastIdleSince.IsZero())

	ent.lastIdleSince = time.Now().Add(-2 * idleEvictionThreshold)
	p.evictIdle()

	p.mu.Lock()
	_, stillThere := p.engines["eth0"]
	p.mu.Unlock()
	require.False(t, stillThere, "the janitor should evict an engine idle past the threshold")
}
