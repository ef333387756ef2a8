// Package metrics provides Prometheus metrics collection for the cyclic
// exchange engine. Adapted from the teacher repository's
// infrastructure/metrics package: same NewWithRegistry-for-test-isolation
// shape, with the HTTP/database/blockchain collectors replaced by cycle,
// reconfigure, and handle-lifecycle collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus collector the engine and its pool emit.
type Metrics struct {
	CyclesTotal        *prometheus.CounterVec
	ReceiveErrorsTotal  *prometheus.CounterVec
	SendErrorsTotal     *prometheus.CounterVec
	CycleOverrunsTotal  *prometheus.CounterVec
	CycleDuration       *prometheus.HistogramVec

	ReconfiguresTotal    *prometheus.CounterVec
	ReconfigureDuration  *prometheus.HistogramVec
	ReconfigureRetries   *prometheus.CounterVec

	SeqlockRetriesTotal *prometheus.CounterVec

	WorkingCounterMismatchesTotal *prometheus.CounterVec
	SlaveStateChangesTotal        *prometheus.CounterVec

	ActiveReaders *prometheus.GaugeVec
	ActiveWriters *prometheus.GaugeVec
	ActiveEngines prometheus.Gauge

	ConfigGeneration *prometheus.GaugeVec
}

// New creates a Metrics instance registered against the default registerer.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered against registerer,
// or entirely unregistered when registerer is nil (used by tests that want
// collectors without polluting the global default registry).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ethercat_cycles_total",
				Help: "Total number of completed cycle-engine iterations",
			},
			[]string{"interface"},
		),
		ReceiveErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ethercat_receive_errors_total",
				Help: "Total number of master.receive errors, coalesced per cycle",
			},
			[]string{"interface"},
		),
		SendErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ethercat_send_errors_total",
				Help: "Total number of master.send errors, coalesced per cycle",
			},
			[]string{"interface"},
		),
		CycleOverrunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ethercat_cycle_overruns_total",
				Help: "Total number of cycles that exceeded their period plus max_overrun",
			},
			[]string{"interface"},
		),
		CycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ethercat_cycle_duration_seconds",
				Help:    "Wall-clock duration of one receive/publish/consume/send iteration",
				Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
			},
			[]string{"interface"},
		),

		ReconfiguresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ethercat_reconfigures_total",
				Help: "Total number of reconfigure attempts, by outcome",
			},
			[]string{"interface", "outcome"},
		),
		ReconfigureDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ethercat_reconfigure_duration_seconds",
				Help:    "Duration of a full reconfigure (stop, re-register, activate)",
				Buckets: []float64{.01, .05, .1, .5, 1, 2.5, 5, 10},
			},
			[]string{"interface"},
		),
		ReconfigureRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ethercat_reconfigure_retries_total",
				Help: "Total number of reconfigure retry attempts consumed",
			},
			[]string{"interface"},
		),

		SeqlockRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ethercat_seqlock_retries_total",
				Help: "Total number of seqlock snapshot retries observed by readers",
			},
			[]string{"interface"},
		),

		WorkingCounterMismatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ethercat_working_counter_mismatches_total",
				Help: "Total number of cycles where the master's working counter didn't match its expected value",
			},
			[]string{"interface"},
		),
		SlaveStateChangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ethercat_slave_state_changes_total",
				Help: "Total number of observed slave state transitions (e.g. OP -> SAFEOP)",
			},
			[]string{"interface", "slave"},
		),

		ActiveReaders: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ethercat_active_readers",
				Help: "Current number of open Reader handles",
			},
			[]string{"interface"},
		),
		ActiveWriters: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ethercat_active_writers",
				Help: "Current number of open Writer handles",
			},
			[]string{"interface"},
		),
		ActiveEngines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ethercat_active_engines",
				Help: "Current number of engines cached in the pool",
			},
		),

		ConfigGeneration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ethercat_config_generation",
				Help: "Current configuration generation per engine",
			},
			[]string{"interface"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.CyclesTotal,
			m.ReceiveErrorsTotal,
			m.SendErrorsTotal,
			m.CycleOverrunsTotal,
			m.CycleDuration,
			m.ReconfiguresTotal,
			m.ReconfigureDuration,
			m.ReconfigureRetries,
			m.SeqlockRetriesTotal,
			m.WorkingCounterMismatchesTotal,
			m.SlaveStateChangesTotal,
			m.ActiveReaders,
			m.ActiveWriters,
			m.ActiveEngines,
			m.ConfigGeneration,
		)
	}

	return m
}

// RecordCycle records one completed cycle iteration.
func (m *Metrics) RecordCycle(iface string, d time.Duration, overran bool) {
	m.CyclesTotal.WithLabelValues(iface).Inc()
	m.CycleDuration.WithLabelValues(iface).Observe(d.Seconds())
	if overran {
		m.CycleOverrunsTotal.WithLabelValues(iface).Inc()
	}
}

// RecordWorkingCounterMismatch records one cycle where the master reported
// an unexpected working counter.
func (m *Metrics) RecordWorkingCounterMismatch(iface string) {
	m.WorkingCounterMismatchesTotal.WithLabelValues(iface).Inc()
}

// RecordSlaveStateChange records one observed slave state transition.
func (m *Metrics) RecordSlaveStateChange(iface, slave string) {
	m.SlaveStateChangesTotal.WithLabelValues(iface, slave).Inc()
}

// RecordReconfigure records the outcome of a reconfigure attempt.
func (m *Metrics) RecordReconfigure(iface, outcome string, attempts int, d time.Duration) {
	m.ReconfiguresTotal.WithLabelValues(iface, outcome).Inc()
	m.ReconfigureDuration.WithLabelValues(iface).Observe(d.Seconds())
	if attempts > 0 {
		m.ReconfigureRetries.WithLabelValues(iface).Add(float64(attempts))
	}
}
