// Package enginepool lazily maps (interface_name, backend) keys to
// engine.Engine instances, evicts idle engines on a schedule, and
// rate-limits the discovery path, per spec.md §4.5.
package enginepool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/ethercat-engine/ethercat/engine"
	"github.com/R3E-Network/ethercat-engine/ethercat/master"
	"github.com/R3E-Network/ethercat-engine/infrastructure/ratelimit"
	"github.com/R3E-Network/ethercat-engine/internal/metrics"
	"github.com/R3E-Network/ethercat-engine/internal/telemetry"
)

// Factory constructs a Master for the given interface name, injected so
// tests can supply a mock.Master without the pool knowing about transport
// details.
type Factory func(ifaceName string) (master.Master, error)

// idleEvictionThreshold is how long an engine with zero open handles sits
// in the pool before the janitor evicts it.
const idleEvictionThreshold = 5 * time.Minute

type entry struct {
	eng          *engine.Engine
	constructedForDiscoveryOnly bool
	lastIdleSince time.Time
}

// Pool lazily maps (interface, backend) keys to Engines.
type Pool struct {
	mu       sync.Mutex
	engines  map[string]*entry
	limiters map[string]*ratelimit.RateLimiter

	factory Factory
	met     *metrics.Metrics
	log     *telemetry.Logger

	cronSched *cron.Cron
}

// New constructs a Pool backed by factory. The janitor cron schedule is
// started immediately and runs for the pool's lifetime; call Close to
// stop it.
func New(factory Factory, met *metrics.Metrics) *Pool {
	p := &Pool{
		engines:  make(map[string]*entry),
		limiters: make(map[string]*ratelimit.RateLimiter),
		factory:  factory,
		met:      met,
		log:      telemetry.NewFromEnv("enginepool"),
	}
	p.cronSched = cron.New(cron.WithLogger(cron.VerbosePrintfLogger(&logrusCronAdapter{p.log})))
	if _, err := p.cronSched.AddFunc("@every 1m", p.evictIdle); err != nil {
		p.log.WithError(err).Error("failed to schedule idle-engine eviction")
	}
	p.cronSched.Start()
	return p
}

// key computes the engine cache key: backend "igh" collapses every
// interface onto a single shared engine, per spec.md §4.5.
func key(ifaceName, backend string) string {
	if backend == "igh" {
		return "igh"
	}
	return ifaceName
}

// Acquire returns the existing engine for the computed key or constructs
// one via the injected factory, keeping a shared reference internally.
func (p *Pool) Acquire(ctx context.Context, ifaceName, backend string, cfg engine.Config) (*engine.Engine, error) {
	k := key(ifaceName, backend)

	p.mu.Lock()
	if e, ok := p.engines[k]; ok {
		e.constructedForDiscoveryOnly = false
		p.mu.Unlock()
		return e.eng, nil
	}
	p.mu.Unlock()

	m, err := p.factory(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("enginepool: construct master for %q: %w", ifaceName, err)
	}
	eng := engine.New(k, m, cfg, p.met)

	p.mu.Lock()
	if e, ok := p.engines[k]; ok {
		// lost the race to a concurrent Acquire; discard ours
		p.mu.Unlock()
		eng.Close()
		return e.eng, nil
	}
	p.engines[k] = &entry{eng: eng}
	if p.met != nil {
		p.met.ActiveEngines.Set(float64(len(p.engines)))
	}
	p.mu.Unlock()

	return eng, nil
}

// DiscoverSlaves returns the cached topology for an active engine, or
// constructs (or reuses) one purely for discovery otherwise. A freshly
// constructed discovery-only engine is not cached if initialization
// fails, per spec.md §4.5.
func (p *Pool) DiscoverSlaves(ctx context.Context, ifaceName string, cfg engine.Config) ([]master.SlaveInfo, error) {
	limiter := p.limiterFor(ifaceName)
	if err := limiter.Wait(ctx); err != nil {
		return nil, err
	}

	k := key(ifaceName, "")

	p.mu.Lock()
	if e, ok := p.engines[k]; ok {
		p.mu.Unlock()
		return e.eng.Slaves(), nil
	}
	p.mu.Unlock()

	m, err := p.factory(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("enginepool: construct master for discovery of %q: %w", ifaceName, err)
	}
	eng := engine.New(k, m, cfg, p.met)
	if err := eng.EnsureInitialized(ctx); err != nil {
		// do not cache an engine that failed to initialize purely for discovery
		return nil, err
	}

	p.mu.Lock()
	if _, ok := p.engines[k]; !ok {
		p.engines[k] = &entry{eng: eng, constructedForDiscoveryOnly: true}
		if p.met != nil {
			p.met.ActiveEngines.Set(float64(len(p.engines)))
		}
	}
	p.mu.Unlock()

	return eng.Slaves(), nil
}

// IsActive reports whether an engine exists for ifaceName and its cycle
// thread is running.
func (p *Pool) IsActive(ifaceName string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.engines[key(ifaceName, "")]
	return ok && e.eng.Running()
}

func (p *Pool) limiterFor(ifaceName string) *ratelimit.RateLimiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[ifaceName]
	if !ok {
		l = ratelimit.New(ratelimit.DefaultConfig())
		p.limiters[ifaceName] = l
	}
	return l
}

// evictIdle runs on the janitor schedule, removing engines whose cycle
// thread the janitor has observed not running, without interruption, for
// more than idleEvictionThreshold.
func (p *Pool) evictIdle() {
	now := time.Now()
	p.mu.Lock()
	defer p.mu.Unlock()

	for k, e := range p.engines {
		if e.eng.Running() {
			e.lastIdleSince = time.Time{}
			continue
		}
		if e.lastIdleSince.IsZero() {
			e.lastIdleSince = now
			continue
		}
		if now.Sub(e.lastIdleSince) < idleEvictionThreshold {
			continue
		}
		p.log.LogPoolEviction(context.Background(), k, now.Sub(e.lastIdleSince))
		e.eng.Close()
		delete(p.engines, k)
	}
	if p.met != nil {
		p.met.ActiveEngines.Set(float64(len(p.engines)))
	}
}

// Close stops the janitor schedule and every cached engine.
func (p *Pool) Close() {
	p.cronSched.Stop()
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.engines {
		e.eng.Close()
	}
	p.engines = make(map[string]*entry)
}

// logrusCronAdapter bridges robfig/cron's Logger interface onto the
// engine's structured logger, matching the teacher repository's scheduler
// logging convention.
type logrusCronAdapter struct {
	log *telemetry.Logger
}

func (a *logrusCronAdapter) Printf(format string, args ...interface{}) {
	a.log.WithFields(map[string]interface{}{"component": "cron"}).Debugf(format, args...)
}
