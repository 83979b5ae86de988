package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter exposes the propagation counters in Prometheus format.
// It reads the Collector on scrape, so counters need no push step.
type PrometheusExporter struct {
	collector *Collector

	cascades       *prometheus.Desc
	hops           *prometheus.Desc
	targetWrites   *prometheus.Desc
	targetFailures *prometheus.Desc
	notifications  *prometheus.Desc
}

// NewPrometheusExporter creates an exporter backed by the given collector.
func NewPrometheusExporter(collector *Collector) *PrometheusExporter {
	return &PrometheusExporter{
		collector: collector,
		cascades: prometheus.NewDesc(
			"tenancy_propagation_cascades_total",
			"Total number of propagation cascades started",
			nil, nil,
		),
		hops: prometheus.NewDesc(
			"tenancy_propagation_hops_total",
			"Total number of re-enumeration rounds across all cascades",
			nil, nil,
		),
		targetWrites: prometheus.NewDesc(
			"tenancy_target_writes_total",
			"Total number of successful per-target creates and updates",
			nil, nil,
		),
		targetFailures: prometheus.NewDesc(
			"tenancy_target_failures_total",
			"Total number of isolated per-target write failures",
			nil, nil,
		),
		notifications: prometheus.NewDesc(
			"tenancy_notifications_published_total",
			"Total number of events published to the notification bus",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (e *PrometheusExporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.cascades
	ch <- e.hops
	ch <- e.targetWrites
	ch <- e.targetFailures
	ch <- e.notifications
}

// Collect implements prometheus.Collector.
func (e *PrometheusExporter) Collect(ch chan<- prometheus.Metric) {
	snap := e.collector.Snapshot()
	ch <- prometheus.MustNewConstMetric(e.cascades, prometheus.CounterValue, float64(snap.Cascades))
	ch <- prometheus.MustNewConstMetric(e.hops, prometheus.CounterValue, float64(snap.Hops))
	ch <- prometheus.MustNewConstMetric(e.targetWrites, prometheus.CounterValue, float64(snap.TargetWrites))
	ch <- prometheus.MustNewConstMetric(e.targetFailures, prometheus.CounterValue, float64(snap.TargetFailures))
	ch <- prometheus.MustNewConstMetric(e.notifications, prometheus.CounterValue, float64(snap.Notifications))
}

// Handler returns an HTTP handler serving the metrics endpoint with this
// exporter registered on a private registry.
func (e *PrometheusExporter) Handler() http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(e)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
