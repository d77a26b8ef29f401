// gonet-relayd is a tcpsock-based relay daemon: it accepts connections,
// optionally upgrades them to TLS, and echoes back every framed message it
// receives while exporting Prometheus metrics for connections and frames.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/DNS-OARC/gonet/config"
	appversion "github.com/DNS-OARC/gonet/internal/version"
	"github.com/DNS-OARC/gonet/message"
	"github.com/DNS-OARC/gonet/metrics"
	"github.com/DNS-OARC/gonet/neterr"
	"github.com/DNS-OARC/gonet/tcpsock"
	"github.com/DNS-OARC/gonet/tlsctx"
)

// shutdownTimeout is the maximum time to wait for the metrics HTTP server
// to drain in-flight requests during graceful shutdown.
const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to load configuration",
			slog.String("error", err.Error()),
		)
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(config.ParseLogLevel(cfg.Log.Level))
	logger := newLoggerWithLevel(cfg.Log, logLevel)

	logger.Info("gonet-relayd starting",
		slog.String("version", appversion.Version),
		slog.String("listen_addr", cfg.Listen.Addr),
		slog.String("metrics_addr", cfg.Metrics.Addr),
		slog.Bool("tls", cfg.TLS.Enabled),
	)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	tlsCtx, err := setupTLS(cfg.TLS)
	if err != nil {
		logger.Error("failed to set up TLS", slog.String("error", err.Error()))
		return 1
	}

	if err := runServers(cfg, reg, collector, tlsCtx, logger, *configPath, logLevel); err != nil {
		logger.Error("gonet-relayd exited with error", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("gonet-relayd stopped")
	return 0
}

// runServers sets up and runs the relay listener and metrics HTTP server
// using an errgroup with a signal-aware context for graceful shutdown.
func runServers(
	cfg *config.Config,
	reg *prometheus.Registry,
	collector *metrics.Collector,
	tlsCtx *tlsctx.Context,
	logger *slog.Logger,
	configPath string,
	logLevel *slog.LevelVar,
) error {
	metricsSrv := newMetricsServer(cfg.Metrics, reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	ep := tcpsock.New(tcpsock.WithLogger(logger))
	host, portStr, err := net.SplitHostPort(cfg.Listen.Addr)
	if err != nil {
		return fmt.Errorf("parse listen addr %q: %w", cfg.Listen.Addr, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return fmt.Errorf("parse listen port %q: %w", portStr, err)
	}
	if err := ep.Bind(host, uint16(port)); err != nil {
		return fmt.Errorf("bind %s: %w", cfg.Listen.Addr, err)
	}

	g.Go(func() error {
		logger.Info("relay listening",
			slog.String("addr", cfg.Listen.Addr),
			slog.Uint64("port", uint64(ep.ListenerPort())),
		)
		return ep.Listen(cfg.Listen.Backlog, cfg.Listen.PollInterval, newRelayHandler(cfg, collector, tlsCtx, logger))
	})

	g.Go(func() error {
		return listenAndServe(gCtx, metricsSrv, cfg.Metrics.Addr)
	})

	startDaemonGoroutines(gCtx, g, configPath, logLevel, logger)

	notifyReady(logger)

	g.Go(func() error {
		<-gCtx.Done()
		return gracefulShutdown(gCtx, ep, logger, metricsSrv)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run servers: %w", err)
	}
	return nil
}

// newRelayHandler returns a tcpsock.ConnectHandler that serves each accepted
// connection on its own goroutine: optional TLS handshake, then an echo loop
// over framed messages, with every step recorded in collector.
func newRelayHandler(cfg *config.Config, collector *metrics.Collector, tlsCtx *tlsctx.Context, logger *slog.Logger) tcpsock.ConnectHandler {
	return func(conn *tcpsock.Endpoint, peerHost string, peerPort uint16) bool {
		conn.SetReadTimeout(cfg.Listen.ReadTimeout)
		conn.SetWriteTimeout(cfg.Listen.WriteTimeout)
		go serveConn(conn, peerHost, peerPort, cfg, collector, tlsCtx, logger)
		return true
	}
}

func serveConn(
	conn *tcpsock.Endpoint,
	peerHost string,
	peerPort uint16,
	cfg *config.Config,
	collector *metrics.Collector,
	tlsCtx *tlsctx.Context,
	logger *slog.Logger,
) {
	peer := net.JoinHostPort(peerHost, strconv.Itoa(int(peerPort)))
	local := cfg.Listen.Addr
	defer conn.Disconnect()

	if tlsCtx != nil {
		handle, err := tlsCtx.NewHandle()
		if err != nil {
			logger.Error("new tls handle", slog.String("peer", peer), slog.String("error", err.Error()))
			return
		}
		if err := conn.TLSWaitForAccept(handle, cfg.Listen.ReadTimeout, nil); err != nil {
			logger.Warn("tls handshake failed", slog.String("peer", peer), slog.String("error", err.Error()))
			return
		}
	}

	collector.RegisterConnection(peer, local, "tcp")
	defer collector.UnregisterConnection(peer, local, "tcp")

	logger.Debug("peer connected", slog.String("peer", peer))

	for {
		in, ok, err := message.WaitMessage(conn, cfg.Listen.ReadTimeout, nil)
		if err != nil {
			logger.Warn("wait message", slog.String("peer", peer), slog.String("error", err.Error()))
			if code := neterr.CodeOf(err); code == neterr.CodeInvalidPacket || code == neterr.CodeInvalidProtocolVersion {
				collector.IncFramesRejected(peer, local)
			}
			return
		}
		if !ok {
			logger.Debug("no message within read timeout", slog.String("peer", peer))
			return
		}
		collector.IncFramesReceived(peer, local)
		collector.AddBytes("tcp", "rx", len(in.Payload))

		out := &message.SocketMessage{
			CommandID:               in.CommandID,
			ID:                      in.ID,
			Payload:                 in.Payload,
			PayloadType:             in.PayloadType,
			UseCompression:          true,
			PeerSupportsCompression: in.PeerSupportsCompression,
		}
		if err := message.SendMessage(conn, out); err != nil {
			logger.Warn("send echo", slog.String("peer", peer), slog.String("error", err.Error()))
			return
		}
		collector.IncFramesSent(peer, local)
		collector.AddBytes("tcp", "tx", len(out.Payload))
	}
}

// setupTLS builds a server-role tlsctx.Context from cfg, or returns nil if
// TLS is disabled.
func setupTLS(cfg config.TLSConfig) (*tlsctx.Context, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	ctx := tlsctx.New()
	if err := ctx.Init(tlsctx.MethodTlsServer); err != nil {
		return nil, fmt.Errorf("init tls context: %w", err)
	}
	if err := ctx.LoadCertificate(cfg.CertFile, cfg.KeyFile, ""); err != nil {
		return nil, fmt.Errorf("load server certificate: %w", err)
	}
	if cfg.TrustedCAFile != "" {
		if err := ctx.LoadTrustedCAFromFile(cfg.TrustedCAFile); err != nil {
			return nil, fmt.Errorf("load trusted CA: %w", err)
		}
	}
	return ctx, nil
}

// startDaemonGoroutines registers the systemd watchdog and SIGHUP reload
// goroutines.
func startDaemonGoroutines(
	ctx context.Context,
	g *errgroup.Group,
	configPath string,
	logLevel *slog.LevelVar,
	logger *slog.Logger,
) {
	g.Go(func() error {
		return runWatchdog(ctx, logger)
	})

	sigHUP := make(chan os.Signal, 1)
	signal.Notify(sigHUP, syscall.SIGHUP)
	g.Go(func() error {
		defer signal.Stop(sigHUP)
		handleSIGHUP(ctx, sigHUP, configPath, logLevel, logger)
		return nil
	})
}

func notifyReady(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn("failed to notify systemd readiness", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: READY")
	}
}

func notifyStopping(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		logger.Warn("failed to notify systemd stopping", slog.String("error", err.Error()))
		return
	}
	if sent {
		logger.Info("notified systemd: STOPPING")
	}
}

// runWatchdog sends periodic watchdog keepalives to systemd at half the
// configured interval, exiting immediately if no watchdog is configured.
func runWatchdog(ctx context.Context, logger *slog.Logger) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		logger.Warn("failed to check systemd watchdog", slog.String("error", err.Error()))
		return nil
	}
	if interval == 0 {
		logger.Debug("systemd watchdog not configured, skipping keepalive")
		return nil
	}

	tick := interval / 2
	logger.Info("systemd watchdog enabled",
		slog.Duration("watchdog_sec", interval),
		slog.Duration("keepalive_interval", tick),
	)

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				logger.Warn("failed to send watchdog keepalive", slog.String("error", err.Error()))
			}
		}
	}
}

// handleSIGHUP reloads the dynamic log level from a fresh read of
// configPath on each SIGHUP, leaving the running listener untouched.
func handleSIGHUP(
	ctx context.Context,
	sigHUP <-chan os.Signal,
	configPath string,
	logLevel *slog.LevelVar,
	logger *slog.Logger,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigHUP:
			logger.Info("received SIGHUP, reloading configuration")
			newCfg, err := loadConfig(configPath)
			if err != nil {
				logger.Error("failed to reload configuration, keeping current settings",
					slog.String("error", err.Error()))
				continue
			}
			oldLevel := logLevel.Level()
			newLevel := config.ParseLogLevel(newCfg.Log.Level)
			logLevel.Set(newLevel)
			logger.Info("configuration reloaded",
				slog.String("old_log_level", oldLevel.String()),
				slog.String("new_log_level", newLevel.String()),
			)
		}
	}
}

// gracefulShutdown stops accepting new connections and shuts down the
// metrics server within shutdownTimeout.
func gracefulShutdown(ctx context.Context, ep *tcpsock.Endpoint, logger *slog.Logger, metricsSrv *http.Server) error {
	logger.Info("initiating graceful shutdown")
	notifyStopping(logger)

	ep.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	return nil
}

func listenAndServe(ctx context.Context, srv *http.Server, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
		return cfg, nil
	}
	return config.DefaultConfig(), nil
}

func newLoggerWithLevel(cfg config.LogConfig, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
