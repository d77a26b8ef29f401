// Package tcpsock implements the TCP endpoint (component D): a blocking
// client/server socket wrapper with configurable timeouts, source-interface
// binding and optional TLS, built on net.Dialer/net.TCPListener rather than
// a hand-rolled non-blocking-connect-plus-select loop. Go's net package
// already performs exactly that pattern internally via the runtime
// netpoller; duplicating it at this layer would only reintroduce the bugs
// that pattern is notorious for in C.
package tcpsock

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/DNS-OARC/gonet/neterr"
	"github.com/DNS-OARC/gonet/tlsctx"
	"github.com/DNS-OARC/gonet/watch"
)

// State is the endpoint's lifecycle state for the server role, per
// component D's Closed -> Bound -> Listening -> Stopping -> Closed state
// machine. Client-role endpoints only ever move Closed -> Connected ->
// Closed and report that with Connected() rather than State().
type State int

const (
	StateClosed State = iota
	StateBound
	StateListening
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateBound:
		return "bound"
	case StateListening:
		return "listening"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// ConnectHandler is invoked once per accepted connection, on the same
// goroutine that is running the accept loop (matching component D's "runs
// on the calling thread" semantics; callers that want concurrency spawn
// their own goroutine from inside the handler). A false return closes the
// connection immediately instead of handing it to the caller.
type ConnectHandler func(conn *Endpoint, peerHost string, peerPort uint16) bool

// Endpoint is a single TCP socket, in either client or server role. The
// zero value is not usable; construct with New.
type Endpoint struct {
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	conn      net.Conn
	listener  *net.TCPListener
	tlsConn   net.Conn
	tlsHandle *tlsctx.Handle

	sourceIface string
	sourcePort  uint16
	connectTO   time.Duration
	readTO      time.Duration
	writeTO     time.Duration

	stopFlag watch.Flag
	running  atomic.Bool
}

// Option configures a new Endpoint.
type Option func(*Endpoint)

// WithLogger attaches a logger for connection lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Endpoint) { e.logger = logger }
}

// New returns a Closed Endpoint.
func New(opts ...Option) *Endpoint {
	e := &Endpoint{logger: slog.Default(), connectTO: 10 * time.Second}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetSource binds the client-role socket's local address before Connect:
// iface selects an outbound interface via SO_BINDTODEVICE (Linux only,
// requires CAP_NET_RAW in most configurations; empty disables it), port
// pins the local source port (0 lets the kernel choose).
func (e *Endpoint) SetSource(iface string, port uint16) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sourceIface = iface
	e.sourcePort = port
}

// SetConnectTimeout bounds how long Connect waits for the handshake to
// complete.
func (e *Endpoint) SetConnectTimeout(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.connectTO = d
}

// SetReadTimeout bounds Read. ReadLoop takes its own timeout argument and
// IsReadable never blocks, so neither uses this value.
func (e *Endpoint) SetReadTimeout(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.readTO = d
}

// SetWriteTimeout bounds Write.
func (e *Endpoint) SetWriteTimeout(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.writeTO = d
}

// dialControl returns the net.Dialer.Control callback implementing
// SetSource's SO_BINDTODEVICE, grounded on the same
// syscall.RawConn.Control/unix.SetsockoptString pattern the teacher uses
// for its raw BFD sockets.
func dialControl(iface string) func(string, string, syscall.RawConn) error {
	return func(_, _ string, c syscall.RawConn) error {
		if iface == "" {
			return nil
		}
		var sockErr error
		if err := c.Control(func(fd uintptr) {
			sockErr = unix.SetsockoptString(int(fd), unix.SOL_SOCKET, unix.SO_BINDTODEVICE, iface)
		}); err != nil {
			return err
		}
		return sockErr
	}
}

// Connect opens a client-role connection to host:port. host may be a
// hostname (resolved via the standard resolver) or a literal address.
func (e *Endpoint) Connect(ctx context.Context, host string, port uint16) error {
	e.mu.Lock()
	if e.state != StateClosed || e.conn != nil {
		e.mu.Unlock()
		return neterr.New(neterr.CodeSocketAlreadyConnected, "endpoint already connected")
	}
	iface := e.sourceIface
	var localAddr net.Addr
	if e.sourcePort != 0 {
		localAddr = &net.TCPAddr{Port: int(e.sourcePort)}
	}
	timeout := e.connectTO
	e.mu.Unlock()

	dialer := &net.Dialer{
		Timeout:   timeout,
		LocalAddr: localAddr,
		Control:   dialControl(iface),
	}

	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return translateDialError(err)
	}

	e.mu.Lock()
	e.conn = conn
	e.mu.Unlock()

	e.logger.Debug("tcp connect", slog.String("addr", addr))
	return nil
}

// ConnectHostPort is Connect with a combined "host:port" or "host:service"
// address, resolving service names via the system services database.
func (e *Endpoint) ConnectHostPort(ctx context.Context, hostport string) error {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return neterr.Wrap(neterr.CodeIllegalPort, hostport, err)
	}
	port, err := net.LookupPort("tcp", portStr)
	if err != nil {
		return neterr.Wrap(neterr.CodeIllegalPort, portStr, err)
	}
	return e.Connect(ctx, host, uint16(port))
}

// translateDialError recognizes the common dial-time failure modes
// (connection refused, timeout, unreachable) and maps them through
// neterr.TranslateOSError so callers get the same Code regardless of
// whether the failure happened at connect or later I/O.
func translateDialError(err error) error {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return neterr.Wrap(neterr.CodeTimeout, "connect", err)
	}
	return neterr.TranslateOSError(err, "connect")
}

// Bind moves the endpoint Closed -> Bound, opening a listening socket on
// host:port without yet accepting connections.
func (e *Endpoint) Bind(host string, port uint16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateClosed {
		return neterr.New(neterr.CodeInvalidSocket, "endpoint is not closed")
	}

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			if err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			}); err != nil {
				return err
			}
			return sockErr
		},
	}

	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	l, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return neterr.TranslateOSError(err, "bind "+addr)
	}

	tcpListener, ok := l.(*net.TCPListener)
	if !ok {
		l.Close()
		return neterr.New(neterr.CodeCouldNotOpenSocket, "bind did not yield a TCP listener")
	}

	e.listener = tcpListener
	e.state = StateBound
	return nil
}

// Listen moves Bound -> Listening and runs the accept loop on the calling
// goroutine until SignalStop/Stop is called or an unrecoverable error
// occurs. pollInterval bounds how often the loop wakes to check for a
// requested stop, via a deadline on the listener rather than a second
// goroutine racing Accept.
func (e *Endpoint) Listen(backlog int, pollInterval time.Duration, handler ConnectHandler) error {
	e.mu.Lock()
	if e.state != StateBound {
		e.mu.Unlock()
		return neterr.New(neterr.CodeInvalidSocket, "endpoint is not bound")
	}
	listener := e.listener
	e.state = StateListening
	e.mu.Unlock()

	_ = backlog // Go's net package sizes the accept backlog via SOMAXCONN internally.

	e.stopFlag.Reset()
	e.running.Store(true)
	defer e.running.Store(false)

	e.logger.Debug("tcp accept loop starting", slog.String("addr", listener.Addr().String()))

	for {
		if e.stopFlag.ShouldStop() {
			e.mu.Lock()
			e.state = StateStopping
			e.mu.Unlock()
			break
		}

		listener.SetDeadline(time.Now().Add(pollInterval))
		conn, err := listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if e.stopFlag.ShouldStop() {
				break
			}
			return neterr.TranslateOSError(err, "accept")
		}

		peerHost, peerPortStr, _ := net.SplitHostPort(conn.RemoteAddr().String())
		peerPort, _ := strconv.Atoi(peerPortStr)

		child := New(WithLogger(e.logger))
		child.conn = conn
		child.state = StateClosed

		if handler == nil || !handler(child, peerHost, uint16(peerPort)) {
			conn.Close()
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener != nil {
		e.listener.Close()
		e.listener = nil
	}
	e.state = StateClosed
	return nil
}

// SignalStop requests that a running Listen loop exit at its next poll
// tick, without blocking for it to do so.
func (e *Endpoint) SignalStop() {
	e.stopFlag.Stop()
}

// Stop requests a stop and blocks until the accept loop has exited.
func (e *Endpoint) Stop() {
	e.SignalStop()
	for e.running.Load() {
		time.Sleep(5 * time.Millisecond)
	}
}

// ListenerPort reports the port a Bound or Listening endpoint is bound to,
// useful when Bind was called with port 0 to let the kernel choose.
func (e *Endpoint) ListenerPort() uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener == nil {
		return 0
	}
	return uint16(e.listener.Addr().(*net.TCPAddr).Port)
}

// State reports the server-role lifecycle state.
func (e *Endpoint) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Connected reports whether the endpoint has a live, non-TLS-wrapped or
// TLS-wrapped connection.
func (e *Endpoint) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeConn() != nil
}

// activeConn must be called with mu held; it returns the TLS conn once
// TLSStart/TLSAccept has completed, or the plain conn otherwise.
func (e *Endpoint) activeConn() net.Conn {
	if e.tlsConn != nil {
		return e.tlsConn
	}
	return e.conn
}

func fmtPeer(c net.Conn) string {
	if c == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s->%s", c.LocalAddr(), c.RemoteAddr())
}
