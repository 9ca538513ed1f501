package rego

import "github.com/prometheus/client_golang/prometheus"

var (
	liveDesc = prometheus.NewDesc(
		"rego_live_resources",
		"Number of currently live managed resources by kind.",
		[]string{"kind"}, nil,
	)
	createdDesc = prometheus.NewDesc(
		"rego_resources_created_total",
		"Total managed resources successfully acquired by kind.",
		[]string{"kind"}, nil,
	)
	releasedDesc = prometheus.NewDesc(
		"rego_resources_released_total",
		"Total managed resources released by kind.",
		[]string{"kind"}, nil,
	)
)

// Describe implements prometheus.Collector.
func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	ch <- liveDesc
	ch <- createdDesc
	ch <- releasedDesc
}

// Collect implements prometheus.Collector, exposing per-kind live counts
// and lifetime created/released totals.
func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for kind, n := range r.live {
		ch <- prometheus.MustNewConstMetric(liveDesc, prometheus.GaugeValue, float64(n), kind)
	}
	for kind, n := range r.created {
		ch <- prometheus.MustNewConstMetric(createdDesc, prometheus.CounterValue, float64(n), kind)
	}
	for kind, n := range r.released {
		ch <- prometheus.MustNewConstMetric(releasedDesc, prometheus.CounterValue, float64(n), kind)
	}
}
