// Package config loads the engine's environment-driven configuration.
// Adapted from the teacher repository's configuration-loading convention
// (env-first, `.env`-friendly) but rebuilt on github.com/joeshaw/envdecode's
// struct-tag decoder instead of the teacher's hand-rolled EnvOrSecret
// helpers, since this engine has no Marble/TEE secret store to fall back
// to — just plain process environment.
package config

import (
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/R3E-Network/ethercat-engine/ethercat/rtthread"
	"github.com/R3E-Network/ethercat-engine/infrastructure/runtime"
)

// EngineConfig is the full environment-configurable surface for one engine
// instance, per spec.md §6's "Configuration surface".
type EngineConfig struct {
	Interface  string        `env:"ETHERCAT_INTERFACE,required"`
	Backend    string        `env:"ETHERCAT_BACKEND,default=soem"`
	MaxOverrun time.Duration `env:"ETHERCAT_MAX_OVERRUN,default=0"`

	RTEnabled                 bool          `env:"ETHERCAT_RT_ENABLED,default=false"`
	RTPriority                int           `env:"ETHERCAT_RT_PRIORITY,default=80"`
	RTCPUAffinity             int           `env:"ETHERCAT_RT_CPU_AFFINITY,default=-1"`
	RTLockMemory              bool          `env:"ETHERCAT_RT_LOCK_MEMORY,default=true"`
	RTPeriod                  time.Duration `env:"ETHERCAT_RT_PERIOD,default=1ms"`
	RTComputation             time.Duration `env:"ETHERCAT_RT_COMPUTATION,default=200us"`
	RTDeadline                time.Duration `env:"ETHERCAT_RT_DEADLINE,default=800us"`
	RTPreferDeadlineScheduler bool          `env:"ETHERCAT_RT_PREFER_DEADLINE,default=false"`
	RTUseMMCSS                bool          `env:"ETHERCAT_RT_USE_MMCSS,default=false"`

	// Environment is not struct-tag decoded; it is resolved separately via
	// ETHERCAT_ENV/ENVIRONMENT so ambient concerns (log format, log level)
	// can default sensibly without a dedicated env var per concern.
	Environment runtime.Environment
}

// Load reads a `.env` file if present (best-effort: a missing file is not
// an error) and then decodes the process environment into an EngineConfig.
func Load() (*EngineConfig, error) {
	_ = godotenv.Load()

	var cfg EngineConfig
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, err
	}
	cfg.Environment = runtime.Env()
	return &cfg, nil
}

// DefaultLogFormat picks "text" for a human-friendly console in development,
// "json" everywhere else. internal/telemetry.NewFromEnv does not consult it:
// it uses "json" in every environment when LOG_FORMAT is unset.
func (c *EngineConfig) DefaultLogFormat() string {
	if c.Environment == runtime.Development {
		return "text"
	}
	return "json"
}

// RTConfig projects the RT* fields into an rtthread.Config.
func (c *EngineConfig) RTConfig() rtthread.Config {
	return rtthread.Config{
		Enabled:                 c.RTEnabled,
		Priority:                c.RTPriority,
		CPUAffinity:             c.RTCPUAffinity,
		LockMemory:              c.RTLockMemory,
		Period:                  c.RTPeriod,
		Computation:             c.RTComputation,
		Deadline:                c.RTDeadline,
		PreferDeadlineScheduler: c.RTPreferDeadlineScheduler,
		UseMMCSS:                c.RTUseMMCSS,
	}
}
