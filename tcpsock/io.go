package tcpsock

import (
	"errors"
	"io"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/DNS-OARC/gonet/neterr"
	"github.com/DNS-OARC/gonet/watch"
)

// Write sends all of buf, looping over partial writes. TCP writes on a
// blocking net.Conn already loop internally until the full buffer is
// accepted by the kernel or an error occurs, but the loop is kept here
// explicitly so SetWriteTimeout's deadline is re-armed for the whole call
// rather than silently applying only to the first kernel write.
func (e *Endpoint) Write(buf []byte) (int, error) {
	e.mu.Lock()
	conn := e.activeConn()
	timeout := e.writeTO
	e.mu.Unlock()

	if conn == nil {
		return 0, neterr.New(neterr.CodeNotConnected, "write on unconnected endpoint")
	}

	if timeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(timeout))
		defer conn.SetWriteDeadline(time.Time{})
	}

	total := 0
	for total < len(buf) {
		n, err := conn.Write(buf[total:])
		total += n
		if err != nil {
			return total, translateIOError(err)
		}
	}
	return total, nil
}

// Read performs a single read into buf, returning whatever the kernel has
// available (possibly fewer bytes than len(buf)).
func (e *Endpoint) Read(buf []byte) (int, error) {
	e.mu.Lock()
	conn := e.activeConn()
	timeout := e.readTO
	e.mu.Unlock()

	if conn == nil {
		return 0, neterr.New(neterr.CodeNotConnected, "read on unconnected endpoint")
	}

	if timeout > 0 {
		conn.SetReadDeadline(time.Now().Add(timeout))
		defer conn.SetReadDeadline(time.Time{})
	}

	n, err := conn.Read(buf)
	if err != nil {
		return n, translateIOError(err)
	}
	return n, nil
}

// pollInterval is how often ReadLoop re-checks its Watch between deadline
// expirations, matching component D's 200ms cooperative-cancellation tick.
const pollInterval = 200 * time.Millisecond

// ReadLoop reads exactly len(buf) bytes, polling w.ShouldStop() every
// pollInterval and failing with CodeTimeout if timeout elapses before the
// buffer is full. A nil w behaves as if it never requests a stop.
func (e *Endpoint) ReadLoop(buf []byte, timeout time.Duration, w watch.Watch) (int, error) {
	w = watch.Of(w)

	e.mu.Lock()
	conn := e.activeConn()
	e.mu.Unlock()

	if conn == nil {
		return 0, neterr.New(neterr.CodeNotConnected, "read on unconnected endpoint")
	}
	defer conn.SetReadDeadline(time.Time{})

	deadline := time.Now().Add(timeout)
	total := 0

	for total < len(buf) {
		if w.ShouldStop() {
			return total, neterr.New(neterr.CodeOperationAborted, "read loop stopped")
		}
		if timeout > 0 && time.Now().After(deadline) {
			return total, neterr.New(neterr.CodeTimeout, "read loop timed out")
		}

		tick := pollInterval
		if timeout > 0 {
			if remaining := time.Until(deadline); remaining < tick {
				tick = remaining
			}
		}
		conn.SetReadDeadline(time.Now().Add(tick))

		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return total, translateIOError(err)
		}
	}

	return total, nil
}

// IsReadable reports whether data (or EOF) is currently available without
// consuming it, via MSG_PEEK|MSG_DONTWAIT on the raw file descriptor. A
// zero-byte, no-error peek means the peer has performed an orderly
// shutdown.
func (e *Endpoint) IsReadable() (bool, error) {
	e.mu.Lock()
	conn := e.activeConn()
	e.mu.Unlock()

	if conn == nil {
		return false, neterr.New(neterr.CodeNotConnected, "is_readable on unconnected endpoint")
	}

	tcpConn, ok := underlyingTCPConn(conn)
	if !ok {
		// A TLS-wrapped conn has no raw fd of its own to peek; fall back to
		// a non-blocking Read with a zero deadline in the past, which
		// crypto/tls treats the same as "would block".
		conn.SetReadDeadline(time.Now().Add(-time.Second))
		defer conn.SetReadDeadline(time.Time{})
		var b [1]byte
		_, err := conn.Read(b[:])
		if err == nil {
			return true, nil
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return false, nil
		}
		return true, nil // EOF or other terminal condition: readable (caller will see it).
	}

	raw, err := tcpConn.SyscallConn()
	if err != nil {
		return false, neterr.TranslateOSError(err, "is_readable")
	}

	var n int
	var peekErr error
	var buf [1]byte
	ctlErr := raw.Read(func(fd uintptr) bool {
		n, _, peekErr = unix.Recvfrom(int(fd), buf[:], unix.MSG_PEEK|unix.MSG_DONTWAIT)
		return true
	})
	if ctlErr != nil {
		return false, neterr.TranslateOSError(ctlErr, "is_readable")
	}
	if peekErr == unix.EAGAIN || peekErr == unix.EWOULDBLOCK {
		return false, nil
	}
	if peekErr != nil {
		return false, neterr.TranslateOSError(peekErr, "is_readable")
	}
	return n >= 0, nil
}

func underlyingTCPConn(c net.Conn) (*net.TCPConn, bool) {
	tc, ok := c.(*net.TCPConn)
	return tc, ok
}

// translateIOError maps io.EOF and the common net.OpError causes to
// component D's Code taxonomy.
func translateIOError(err error) error {
	if errors.Is(err, io.EOF) {
		return neterr.New(neterr.CodeBrokenPipe, "connection closed by peer")
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return neterr.Wrap(neterr.CodeTimeout, "io", err)
	}
	return neterr.TranslateOSError(err, "io")
}

// Disconnect closes the connection and releases any TLS handle. With TLS
// active it closes the *tls.Conn, which sends close_notify first when the
// handshake has completed. Idempotent.
func (e *Endpoint) Disconnect() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var err error
	if e.tlsConn != nil {
		err = e.tlsConn.Close()
		e.tlsConn = nil
	} else if e.conn != nil {
		err = e.conn.Close()
	}
	e.conn = nil
	if e.tlsHandle != nil {
		e.tlsHandle.Release()
		e.tlsHandle = nil
	}
	if err != nil {
		return neterr.TranslateOSError(err, "disconnect")
	}
	return nil
}

// Shutdown performs a TLS close_notify (if TLS is active) before closing
// the underlying socket, so the peer observes an orderly shutdown rather
// than a reset.
func (e *Endpoint) Shutdown() error {
	e.mu.Lock()
	tlsConn := e.tlsConn
	e.mu.Unlock()

	if tc, ok := tlsConn.(interface{ CloseWrite() error }); ok {
		_ = tc.CloseWrite()
	}
	return e.Disconnect()
}
