// Package metrics exposes server and codec activity in Prometheus format.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raniellyferreira/resp-server/protocol"
)

const namespace = "resp"

// maxCommandLabels bounds the command label set. Command names come from
// clients, so later names are counted under "other".
const maxCommandLabels = 128

// Collector implements server.MetricsCollector on top of a Prometheus
// registry
type Collector struct {
	registry *prometheus.Registry

	connectionsActive prometheus.Gauge
	connectionsTotal  prometheus.Counter
	bytesReceived     prometheus.Counter
	framesDecoded     *prometheus.CounterVec
	protocolErrors    *prometheus.CounterVec
	commandsTotal     *prometheus.CounterVec
	commandDuration   prometheus.Histogram

	mu       sync.Mutex
	commands map[string]struct{}
}

// New creates a collector with its own registry, which also carries the Go
// runtime and process collectors
func New() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(registry)
}

// NewWithRegistry registers the collector metrics with registry
func NewWithRegistry(registry *prometheus.Registry) *Collector {
	c := &Collector{
		registry: registry,
		commands: make(map[string]struct{}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of open client connections",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of accepted client connections",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Total bytes read from clients",
		}),
		framesDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_decoded_total",
			Help:      "Top-level frames decoded, by frame type",
		}, []string{"type"}),
		protocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Connections closed because of a protocol error, by kind",
		}, []string{"kind"}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands processed, by command name",
		}, []string{"command"}),
		commandDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time spent in the command handler",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}

	registry.MustRegister(
		c.connectionsActive,
		c.connectionsTotal,
		c.bytesReceived,
		c.framesDecoded,
		c.protocolErrors,
		c.commandsTotal,
		c.commandDuration,
	)
	return c
}

// Registry returns the registry the metrics are registered with
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordConnectionOpened() {
	c.connectionsActive.Inc()
	c.connectionsTotal.Inc()
}

func (c *Collector) RecordConnectionClosed() {
	c.connectionsActive.Dec()
}

func (c *Collector) RecordBytesReceived(n int) {
	c.bytesReceived.Add(float64(n))
}

func (c *Collector) RecordFrameDecoded(t protocol.Type) {
	c.framesDecoded.WithLabelValues(t.String()).Inc()
}

func (c *Collector) RecordProtocolError(kind string) {
	if kind == "" {
		kind = "other"
	}
	c.protocolErrors.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordCommand(cmd string, duration time.Duration) {
	c.commandsTotal.WithLabelValues(c.commandLabel(cmd)).Inc()
	c.commandDuration.Observe(duration.Seconds())
}

func (c *Collector) commandLabel(cmd string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.commands[cmd]; ok {
		return cmd
	}
	if len(c.commands) >= maxCommandLabels {
		return "other"
	}
	c.commands[cmd] = struct{}{}
	return cmd
}
