// Package metrics exposes Prometheus metrics for the mailing scheduler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for the scheduler
type Metrics struct {
	// Tick metrics
	TicksTotal          prometheus.Counter
	TickDurationSeconds prometheus.Histogram

	// Campaign gauges/counters
	CampaignsActive       prometheus.Gauge
	CampaignsDueTotal     prometheus.Counter
	CampaignsRetiredTotal *prometheus.CounterVec

	// Attempt metrics
	AttemptsTotal       *prometheus.CounterVec
	SendDurationSeconds prometheus.Histogram

	// Error counters
	SelectorErrorsTotal prometheus.Counter
	StoreErrorsTotal    prometheus.Counter

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailsched_ticks_total",
			Help: "Total number of scheduler ticks executed",
		}),
		TickDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mailsched_tick_duration_seconds",
			Help:    "Duration of scheduler ticks",
			Buckets: prometheus.DefBuckets,
		}),
		CampaignsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mailsched_campaigns_active",
			Help: "Number of active campaigns seen by the last tick",
		}),
		CampaignsDueTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailsched_campaigns_due_total",
			Help: "Total number of campaigns selected as due",
		}),
		CampaignsRetiredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailsched_campaigns_retired_total",
				Help: "Total number of campaigns moved to a terminal status",
			},
			[]string{"status"},
		),
		AttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailsched_attempts_total",
				Help: "Total number of delivery attempts recorded",
			},
			[]string{"outcome"},
		),
		SendDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mailsched_send_duration_seconds",
			Help:    "Duration of mail transport calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		SelectorErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailsched_selector_errors_total",
			Help: "Total number of due-computation errors (for example malformed periodicity)",
		}),
		StoreErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailsched_store_errors_total",
			Help: "Total number of store read/write failures during ticks",
		}),
		registry: reg,
	}

	reg.MustRegister(
		m.TicksTotal,
		m.TickDurationSeconds,
		m.CampaignsActive,
		m.CampaignsDueTotal,
		m.CampaignsRetiredTotal,
		m.AttemptsTotal,
		m.SendDurationSeconds,
		m.SelectorErrorsTotal,
		m.StoreErrorsTotal,
	)

	return m
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
