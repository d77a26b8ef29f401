package tcpsock

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"log/slog"
	"net"
	"time"

	"github.com/DNS-OARC/gonet/neterr"
	"github.com/DNS-OARC/gonet/tlsctx"
	"github.com/DNS-OARC/gonet/watch"
)

// TLSStart upgrades a connected client-role endpoint to TLS, performing
// the handshake inline. handle is borrowed for the lifetime of the TLS
// connection and released by Disconnect/Shutdown/TLSStop.
func (e *Endpoint) TLSStart(handle *tlsctx.Handle) error {
	e.mu.Lock()
	conn := e.conn
	if conn == nil {
		e.mu.Unlock()
		return neterr.New(neterr.CodeNotConnected, "tls_start on unconnected endpoint")
	}
	if e.tlsConn != nil {
		e.mu.Unlock()
		return neterr.New(neterr.CodeSslConnectionFailed, "tls already started")
	}
	timeout := e.connectTO
	e.mu.Unlock()

	tlsConn := tls.Client(conn, handle.Config())

	hsCtx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		hsCtx, cancel = context.WithTimeout(hsCtx, timeout)
		defer cancel()
	}
	if err := tlsConn.HandshakeContext(hsCtx); err != nil {
		return neterr.Wrap(neterr.CodeSslConnectionFailed, "tls handshake", err)
	}

	e.mu.Lock()
	e.tlsConn = tlsConn
	e.tlsHandle = handle
	e.mu.Unlock()

	e.logger.Debug("tls handshake complete", slog.String("peer", fmtPeer(tlsConn)))
	return nil
}

// TLSAccept performs a synchronous server-side TLS handshake on an already
// accepted connection.
func (e *Endpoint) TLSAccept(handle *tlsctx.Handle) error {
	e.mu.Lock()
	conn := e.conn
	if conn == nil {
		e.mu.Unlock()
		return neterr.New(neterr.CodeNotConnected, "tls_accept on unconnected endpoint")
	}
	e.mu.Unlock()

	tlsConn := tls.Server(conn, handle.Config())
	if err := tlsConn.Handshake(); err != nil {
		return neterr.Wrap(neterr.CodeSslConnectionFailed, "tls accept", err)
	}

	e.mu.Lock()
	e.tlsConn = tlsConn
	e.tlsHandle = handle
	e.mu.Unlock()

	return nil
}

// TLSWaitForAccept performs the server-side handshake the same as
// TLSAccept, but polls w.ShouldStop() every 10ms and bounds the whole
// attempt by timeout, so a caller can cancel a handshake stalled on a slow
// or hostile peer.
func (e *Endpoint) TLSWaitForAccept(handle *tlsctx.Handle, timeout time.Duration, w watch.Watch) error {
	w = watch.Of(w)

	e.mu.Lock()
	conn := e.conn
	if conn == nil {
		e.mu.Unlock()
		return neterr.New(neterr.CodeNotConnected, "tls_wait_for_accept on unconnected endpoint")
	}
	e.mu.Unlock()

	tlsConn := tls.Server(conn, handle.Config())
	deadline := time.Now().Add(timeout)
	const tick = 10 * time.Millisecond

	for {
		if w.ShouldStop() {
			return neterr.New(neterr.CodeOperationAborted, "tls accept wait stopped")
		}
		if timeout > 0 && time.Now().After(deadline) {
			return neterr.New(neterr.CodeTimeout, "tls accept wait timed out")
		}

		step := tick
		if timeout > 0 {
			if remaining := time.Until(deadline); remaining < step {
				step = remaining
			}
		}
		conn.SetDeadline(time.Now().Add(step))

		err := tlsConn.Handshake()
		if err == nil {
			conn.SetDeadline(time.Time{})
			e.mu.Lock()
			e.tlsConn = tlsConn
			e.tlsHandle = handle
			e.mu.Unlock()
			return nil
		}
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			continue
		}
		return neterr.Wrap(neterr.CodeSslConnectionFailed, "tls accept wait", err)
	}
}

// TLSCheckCertificate validates the peer certificate's subject against
// expectedName (empty skips the name check) and, unless acceptSelfSigned,
// rejects a peer whose presented chain is self-signed rather than
// verified against the context's trust store.
func (e *Endpoint) TLSCheckCertificate(expectedName string, acceptSelfSigned bool) error {
	e.mu.Lock()
	tlsConn, _ := e.tlsConn.(*tls.Conn)
	e.mu.Unlock()

	if tlsConn == nil {
		return neterr.New(neterr.CodeSslNotStarted, "tls not started")
	}

	state := tlsConn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return neterr.New(neterr.CodeInvalidSslCertificate, "peer presented no certificate")
	}

	leaf := state.PeerCertificates[0]
	selfSigned := leaf.Issuer.String() == leaf.Subject.String()
	if selfSigned && !acceptSelfSigned {
		return neterr.New(neterr.CodeInvalidSslCertificate, "peer certificate is self-signed")
	}

	if expectedName != "" {
		if err := leaf.VerifyHostname(expectedName); err != nil {
			return neterr.Wrap(neterr.CodeInvalidSslCertificate, expectedName, err)
		}
	}

	return nil
}

// TLSPeerCertificate returns the leaf certificate the peer presented, or
// nil if TLS was never started or the peer presented none.
func (e *Endpoint) TLSPeerCertificate() *x509.Certificate {
	e.mu.Lock()
	tlsConn, _ := e.tlsConn.(*tls.Conn)
	e.mu.Unlock()

	if tlsConn == nil {
		return nil
	}
	certs := tlsConn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return nil
	}
	return certs[0]
}

// TLSCipherName returns the negotiated cipher suite's name, or "" if TLS
// is not active.
func (e *Endpoint) TLSCipherName() string {
	e.mu.Lock()
	tlsConn, _ := e.tlsConn.(*tls.Conn)
	e.mu.Unlock()

	if tlsConn == nil {
		return ""
	}
	return tls.CipherSuiteName(tlsConn.ConnectionState().CipherSuite)
}

// TLSVersion returns the negotiated protocol version string (e.g.
// "1.3"), or "" if TLS is not active.
func (e *Endpoint) TLSVersion() string {
	e.mu.Lock()
	tlsConn, _ := e.tlsConn.(*tls.Conn)
	e.mu.Unlock()

	if tlsConn == nil {
		return ""
	}
	switch tlsConn.ConnectionState().Version {
	case tls.VersionTLS10:
		return "1.0"
	case tls.VersionTLS11:
		return "1.1"
	case tls.VersionTLS12:
		return "1.2"
	case tls.VersionTLS13:
		return "1.3"
	default:
		return "unknown"
	}
}

// TLSStop tears down the TLS layer, sending close_notify, and releases the
// borrowed Handle, leaving the underlying TCP connection intact so a
// caller could in principle continue in plaintext (matching the
// original's tls_stop, which does not close the socket).
func (e *Endpoint) TLSStop() error {
	e.mu.Lock()
	tlsConn, _ := e.tlsConn.(*tls.Conn)
	handle := e.tlsHandle
	e.tlsConn = nil
	e.tlsHandle = nil
	e.mu.Unlock()

	if tlsConn == nil {
		return neterr.New(neterr.CodeSslNotStarted, "tls not started")
	}

	err := tlsConn.CloseWrite()
	if handle != nil {
		handle.Release()
	}
	if err != nil {
		return neterr.Wrap(neterr.CodeSslConnectionFailed, "tls stop", err)
	}
	return nil
}
