package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Monitor counters and gauges.

var (
	IterationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridgemon",
		Subsystem: "runner",
		Name:      "iterations_total",
		Help:      "Monitor iterations by result",
	}, []string{"result"})

	IterationAttemptFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bridgemon",
		Subsystem: "runner",
		Name:      "attempt_failures_total",
		Help:      "Failed iteration attempts, including ones later retried",
	})

	IterationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "bridgemon",
		Subsystem: "runner",
		Name:      "iteration_duration_seconds",
		Help:      "Duration of a successful monitor iteration",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	AlertsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridgemon",
		Subsystem: "monitor",
		Name:      "alerts_total",
		Help:      "Alerts emitted by kind",
	}, []string{"kind"})

	WindowStartBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bridgemon",
		Subsystem: "monitor",
		Name:      "window_start_block",
		Help:      "Starting block of the current monitor window",
	})

	WindowEndBlock = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bridgemon",
		Subsystem: "monitor",
		Name:      "window_end_block",
		Help:      "Ending block of the current monitor window",
	})

	BridgePools = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "bridgemon",
		Subsystem: "monitor",
		Name:      "bridge_pools",
		Help:      "Bridge pools known to the monitor",
	})

	PoolUtilization = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "bridgemon",
		Subsystem: "monitor",
		Name:      "pool_utilization_ratio",
		Help:      "Last observed pool liquidity utilization (1.0 = 100%)",
	}, []string{"pool", "symbol"})
)
