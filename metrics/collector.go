// Package metrics exposes the gonet ambient stack's Prometheus
// instrumentation: connection, frame and byte counters. The library
// packages (tcpsock, udpsock, message, resolver) do not record them;
// cmd/gonet-relayd calls the Collector methods itself. Grounded on the teacher's
// internal/metrics collector pattern (one Collector struct, one
// constructor taking a prometheus.Registerer, label-driven WithLabelValues
// calls on each operation).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "gonet"
	subsystem = "net"
)

// Label names shared across the vectors below.
const (
	labelPeerAddr  = "peer_addr"
	labelLocalAddr = "local_addr"
	labelProto     = "proto" // "tcp" or "udp"
	labelDirection = "direction"
)

// Collector holds all gonet Prometheus metrics.
//
// Metrics cover the three components that move bytes across a process
// boundary: tcpsock/udpsock connections and the message framing layer.
type Collector struct {
	// Connections tracks the number of currently active tcpsock/udpsock
	// endpoints. Incremented by RegisterConnection, decremented by
	// UnregisterConnection.
	Connections *prometheus.GaugeVec

	// BytesTransferred counts raw bytes moved per proto/direction.
	BytesTransferred *prometheus.CounterVec

	// FramesSent counts framed messages (component F) successfully sent.
	FramesSent *prometheus.CounterVec

	// FramesReceived counts framed messages successfully received and
	// validated.
	FramesReceived *prometheus.CounterVec

	// FramesRejected counts framed messages dropped due to CRC mismatch,
	// bad magic, or an unsupported protocol version.
	FramesRejected *prometheus.CounterVec

	// FramesCompressed counts sent frames whose payload was deflated.
	FramesCompressed *prometheus.CounterVec

	// ResolverQueries counts resolver package lookups, labeled by
	// operation (get_host_by_name, get_host_by_addr, query) and outcome.
	ResolverQueries *prometheus.CounterVec
}

// NewCollector creates a Collector with all gonet metrics registered
// against reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.Connections,
		c.BytesTransferred,
		c.FramesSent,
		c.FramesReceived,
		c.FramesRejected,
		c.FramesCompressed,
		c.ResolverQueries,
	)

	return c
}

func newMetrics() *Collector {
	connLabels := []string{labelPeerAddr, labelLocalAddr, labelProto}
	byteLabels := []string{labelProto, labelDirection}
	frameLabels := []string{labelPeerAddr, labelLocalAddr}

	return &Collector{
		Connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connections",
			Help:      "Number of currently active tcpsock/udpsock endpoints.",
		}, connLabels),

		BytesTransferred: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bytes_total",
			Help:      "Total bytes transferred, labeled by transport and direction.",
		}, byteLabels),

		FramesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_sent_total",
			Help:      "Total framed messages sent.",
		}, frameLabels),

		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_received_total",
			Help:      "Total framed messages received and validated.",
		}, frameLabels),

		FramesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_rejected_total",
			Help:      "Total framed messages rejected (bad magic, CRC mismatch, unsupported version).",
		}, frameLabels),

		FramesCompressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_compressed_total",
			Help:      "Total sent frames whose payload was deflated.",
		}, frameLabels),

		ResolverQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "resolver_queries_total",
			Help:      "Total resolver operations, labeled by op and outcome.",
		}, []string{"op", "outcome"}),
	}
}

// RegisterConnection increments the active-connections gauge.
func (c *Collector) RegisterConnection(peer, local, proto string) {
	c.Connections.WithLabelValues(peer, local, proto).Inc()
}

// UnregisterConnection decrements the active-connections gauge.
func (c *Collector) UnregisterConnection(peer, local, proto string) {
	c.Connections.WithLabelValues(peer, local, proto).Dec()
}

// AddBytes records n bytes moved over proto in direction ("tx" or "rx").
func (c *Collector) AddBytes(proto, direction string, n int) {
	c.BytesTransferred.WithLabelValues(proto, direction).Add(float64(n))
}

// IncFramesSent increments the sent-frames counter for peer/local.
func (c *Collector) IncFramesSent(peer, local string) {
	c.FramesSent.WithLabelValues(peer, local).Inc()
}

// IncFramesReceived increments the received-frames counter for peer/local.
func (c *Collector) IncFramesReceived(peer, local string) {
	c.FramesReceived.WithLabelValues(peer, local).Inc()
}

// IncFramesRejected increments the rejected-frames counter for peer/local.
func (c *Collector) IncFramesRejected(peer, local string) {
	c.FramesRejected.WithLabelValues(peer, local).Inc()
}

// IncFramesCompressed increments the compressed-frames counter for peer/local.
func (c *Collector) IncFramesCompressed(peer, local string) {
	c.FramesCompressed.WithLabelValues(peer, local).Inc()
}

// IncResolverQuery increments the resolver-queries counter for op/outcome
// (outcome is one of "ok", "no_result", "error").
func (c *Collector) IncResolverQuery(op, outcome string) {
	c.ResolverQueries.WithLabelValues(op, outcome).Inc()
}
