// Package metrics records vault subprocess and cache activity with
// Prometheus collectors. A CLI run has no scrape endpoint, so the registry
// is dumped to a node_exporter textfile on exit when requested.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result labels.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics groups the collectors for one registry.
type Metrics struct {
	registry *prometheus.Registry

	vaultCalls    *prometheus.CounterVec
	vaultDuration *prometheus.HistogramVec
	cacheWrites   *prometheus.CounterVec
	unlocks       *prometheus.CounterVec
}

// New creates collectors registered on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		vaultCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretmenu_vault_calls_total",
				Help: "Total number of vault subprocess invocations",
			},
			[]string{"subcommand", "result"},
		),
		vaultDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "secretmenu_vault_call_duration_seconds",
				Help:    "Duration of vault subprocess invocations in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"subcommand"},
		),
		cacheWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretmenu_cache_writes_total",
				Help: "Total number of item cache rewrites",
			},
			[]string{"provider", "result"},
		),
		unlocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretmenu_session_acquisitions_total",
				Help: "Vault sessions acquired, by source (stored or interactive)",
			},
			[]string{"provider", "source"},
		),
	}
	m.registry.MustRegister(m.vaultCalls, m.vaultDuration, m.cacheWrites, m.unlocks)
	return m
}

var defaultMetrics = New()

// Default returns the process-wide collectors.
func Default() *Metrics {
	return defaultMetrics
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveVaultCall records one vault invocation.
func (m *Metrics) ObserveVaultCall(subcommand string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.vaultCalls.WithLabelValues(subcommand, result(err)).Inc()
	m.vaultDuration.WithLabelValues(subcommand).Observe(d.Seconds())
}

// RecordCacheWrite records one cache rewrite.
func (m *Metrics) RecordCacheWrite(provider string, err error) {
	if m == nil {
		return
	}
	m.cacheWrites.WithLabelValues(provider, result(err)).Inc()
}

// RecordSession records how a provider obtained its session.
func (m *Metrics) RecordSession(provider, source string) {
	if m == nil {
		return
	}
	m.unlocks.WithLabelValues(provider, source).Inc()
}

// VaultCalls exposes the call counter for tests.
func (m *Metrics) VaultCalls() *prometheus.CounterVec {
	return m.vaultCalls
}

// CacheWrites exposes the cache counter for tests.
func (m *Metrics) CacheWrites() *prometheus.CounterVec {
	return m.cacheWrites
}

// Sessions exposes the session counter for tests.
func (m *Metrics) Sessions() *prometheus.CounterVec {
	return m.unlocks
}

// WriteTextfile writes the registry in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

func result(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
