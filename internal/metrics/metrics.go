// Package metrics exposes the sampled values and display activity to
// Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"epdstats/internal/procstat"
)

const namespace = "epdstats"

// Metrics owns a private registry so tests and multiple runners do not
// collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	cpuPercent    prometheus.Gauge
	memPercent    prometheus.Gauge
	memUsedMB     prometheus.Gauge
	memTotalMB    prometheus.Gauge
	load1         prometheus.Gauge
	batteryPct    prometheus.Gauge
	updates       *prometheus.CounterVec
	touches       prometheus.Counter
	pushFailures  prometheus.Counter
	lastUpdateSec prometheus.Gauge
}

// New builds and registers every collector, plus the Go runtime and process
// collectors.
func New() *Metrics {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help})
	}

	m := &Metrics{
		registry:      prometheus.NewRegistry(),
		cpuPercent:    gauge("cpu_percent", "CPU utilization over the last sampling interval."),
		memPercent:    gauge("memory_percent", "Memory in use as a percentage of MemTotal."),
		memUsedMB:     gauge("memory_used_megabytes", "MemTotal minus MemAvailable, in MB."),
		memTotalMB:    gauge("memory_total_megabytes", "MemTotal in MB."),
		load1:         gauge("load1", "One-minute load average."),
		batteryPct:    gauge("battery_percent", "UPS battery level, when a battery reader is configured."),
		lastUpdateSec: gauge("last_update_timestamp_seconds", "Unix time of the last successful panel push."),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "display_updates_total",
			Help:      "Frames pushed to the panel, by refresh mode.",
		}, []string{"mode"}),
		touches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "touch_events_total",
			Help:      "Accepted taps on the touch panel.",
		}),
		pushFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "display_push_failures_total",
			Help:      "Frames the panel driver rejected.",
		}),
	}

	m.registry.MustRegister(
		m.cpuPercent, m.memPercent, m.memUsedMB, m.memTotalMB, m.load1, m.batteryPct,
		m.lastUpdateSec, m.updates, m.touches, m.pushFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveSample records one sampling round.
func (m *Metrics) ObserveSample(cpu float64, mem procstat.MemoryUsage, load1 float64) {
	m.cpuPercent.Set(cpu)
	m.memPercent.Set(mem.Percent)
	m.memUsedMB.Set(float64(mem.UsedMB))
	m.memTotalMB.Set(float64(mem.TotalMB))
	m.load1.Set(load1)
}

func (m *Metrics) ObserveBattery(percent int) {
	m.batteryPct.Set(float64(percent))
}

// DisplayUpdated counts a successful push; mode is "full" or "partial".
func (m *Metrics) DisplayUpdated(mode string, unixSeconds float64) {
	m.updates.WithLabelValues(mode).Inc()
	m.lastUpdateSec.Set(unixSeconds)
}

func (m *Metrics) DisplayFailed() { m.pushFailures.Inc() }

func (m *Metrics) Touched() { m.touches.Inc() }

// Registry is exposed for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
