// Package metrics holds the prometheus collectors of the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hyperlev"

var (
	APIRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "api_request_latency_seconds",
		Help:      "Latency of exchange API requests",
	}, []string{"endpoint", "type"})

	APIRequestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "api_request_errors_total",
		Help:      "Failed exchange API requests",
	}, []string{"endpoint", "type"})

	PollTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "poll_total",
		Help:      "Polling loop ticks by outcome (ok, error, stale)",
	}, []string{"loop", "result"})

	ActiveLoops = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_loops",
		Help:      "Number of running polling loops",
	})

	OrderAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_attempts_total",
		Help:      "Order submission attempts by terminal outcome",
	}, []string{"outcome"})

	StateSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "state_subscribers",
		Help:      "Number of active state stream subscribers",
	})
)
