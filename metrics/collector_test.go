package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/DNS-OARC/gonet/metrics"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	if c.Connections == nil {
		t.Error("Connections is nil")
	}
	if c.BytesTransferred == nil {
		t.Error("BytesTransferred is nil")
	}
	if c.FramesSent == nil {
		t.Error("FramesSent is nil")
	}
	if c.FramesReceived == nil {
		t.Error("FramesReceived is nil")
	}
	if c.FramesRejected == nil {
		t.Error("FramesRejected is nil")
	}
	if c.FramesCompressed == nil {
		t.Error("FramesCompressed is nil")
	}
	if c.ResolverQueries == nil {
		t.Error("ResolverQueries is nil")
	}

	// Registration must not panic and must be gatherable even with no
	// data recorded yet.
	if _, err := reg.Gather(); err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
}

func TestRegisterUnregisterConnection(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.RegisterConnection("10.0.0.1:4433", "10.0.0.2:51000", "tcp")
	c.RegisterConnection("10.0.0.1:4433", "10.0.0.2:51000", "tcp")
	c.UnregisterConnection("10.0.0.1:4433", "10.0.0.2:51000", "tcp")

	got := testutil.ToFloat64(c.Connections.WithLabelValues("10.0.0.1:4433", "10.0.0.2:51000", "tcp"))
	if got != 1 {
		t.Fatalf("Connections = %v, want 1", got)
	}
}

func TestFrameCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.IncFramesSent("peer", "local")
	c.IncFramesReceived("peer", "local")
	c.IncFramesReceived("peer", "local")
	c.IncFramesRejected("peer", "local")
	c.IncFramesCompressed("peer", "local")

	if got := testutil.ToFloat64(c.FramesReceived.WithLabelValues("peer", "local")); got != 2 {
		t.Fatalf("FramesReceived = %v, want 2", got)
	}
}

func TestAddBytesAndResolverQueries(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.AddBytes("tcp", "tx", 128)
	c.AddBytes("tcp", "tx", 64)
	c.IncResolverQuery("get_host_by_name", "ok")

	if got := testutil.ToFloat64(c.BytesTransferred.WithLabelValues("tcp", "tx")); got != 192 {
		t.Fatalf("BytesTransferred = %v, want 192", got)
	}
	if got := testutil.ToFloat64(c.ResolverQueries.WithLabelValues("get_host_by_name", "ok")); got != 1 {
		t.Fatalf("ResolverQueries = %v, want 1", got)
	}
}
