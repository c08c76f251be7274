package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/atymic/soketi/internal/namespace"
)

// Collector exports live per-app gauges straight from the namespace
// registry, so scrapes always see current values without the server
// updating counters on every connect and disconnect.
type Collector struct {
	registry *namespace.Registry

	connectedDesc *prometheus.Desc
	channelsDesc  *prometheus.Desc
}

// NewCollector creates a collector reading from the given registry.
// Attach it to a metrics registry with MustRegister.
func NewCollector(registry *namespace.Registry) *Collector {
	return &Collector{
		registry: registry,
		connectedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "connected"),
			"Connections currently held by this node",
			[]string{"app_id"}, nil,
		),
		channelsDesc: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "", "channels"),
			"Channels with at least one local subscriber",
			[]string{"app_id"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connectedDesc
	ch <- c.channelsDesc
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.registry.Each(func(appID string, ns *namespace.Namespace) bool {
		ch <- prometheus.MustNewConstMetric(
			c.connectedDesc, prometheus.GaugeValue, float64(ns.SocketsCount()), appID)
		ch <- prometheus.MustNewConstMetric(
			c.channelsDesc, prometheus.GaugeValue, float64(ns.ChannelsCount()), appID)
		return true
	})
}
