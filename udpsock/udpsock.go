// Package udpsock implements the UDP endpoint (component E): a
// connectionless or peer-associated datagram socket with the same
// timeout/source-binding conventions as tcpsock, but no accept loop and no
// TLS (DTLS is out of scope per the spec's Non-goals).
package udpsock

import (
	"context"
	"net"
	"net/netip"
	"strconv"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/DNS-OARC/gonet/neterr"
)

// Endpoint is a single UDP socket, either bound (for send_to/recv_from) or
// connected to one peer (for read/write). The zero value is not usable;
// construct with New.
type Endpoint struct {
	mu sync.Mutex

	packetConn *net.UDPConn // set after Bind
	peerConn   net.Conn     // set after Connect

	sourceIface string
	readTO      time.Duration
	writeTO     time.Duration
}

// New returns an unbound, unconnected Endpoint.
func New() *Endpoint {
	return &Endpoint{}
}

// SetSource selects an outbound interface for Connect via SO_BINDTODEVICE.
func (e *Endpoint) SetSource(iface string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sourceIface = iface
}

// SetReadTimeout bounds RecvFrom and Read.
func (e *Endpoint) SetReadTimeout(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.readTO = d
}

// SetWriteTimeout bounds SendTo and Write.
func (e *Endpoint) SetWriteTimeout(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.writeTO = d
}

// Bind opens the socket for SendTo/RecvFrom on host:port ("" binds all
// interfaces, port 0 lets the kernel choose).
func (e *Endpoint) Bind(host string, port uint16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.packetConn != nil || e.peerConn != nil {
		return neterr.New(neterr.CodeSocketAlreadyConnected, "endpoint already bound or connected")
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
	pc, err := lc.ListenPacket(context.Background(), "udp", addr)
	if err != nil {
		return neterr.TranslateOSError(err, "bind "+addr)
	}

	udpConn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return neterr.New(neterr.CodeCouldNotOpenSocket, "bind did not yield a UDP socket")
	}

	e.packetConn = udpConn
	return nil
}

// Connect associates the socket with a single peer, after which Read and
// Write (rather than RecvFrom/SendTo) apply.
func (e *Endpoint) Connect(ctx context.Context, host string, port uint16) error {
	e.mu.Lock()
	if e.packetConn != nil || e.peerConn != nil {
		e.mu.Unlock()
		return neterr.New(neterr.CodeSocketAlreadyConnected, "endpoint already bound or connected")
	}
	iface := e.sourceIface
	e.mu.Unlock()

	dialer := &net.Dialer{
		Control: func(_, _ string, c syscall.RawConn) error {
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
		},
	}

	addr := net.JoinHostPort(host, strconv.Itoa(int(port)))
	conn, err := dialer.DialContext(ctx, "udp", addr)
	if err != nil {
		return neterr.TranslateOSError(err, "connect "+addr)
	}

	e.mu.Lock()
	e.peerConn = conn
	e.mu.Unlock()
	return nil
}

// ListenerPort reports the local port a Bound endpoint is listening on.
func (e *Endpoint) ListenerPort() uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.packetConn == nil {
		return 0
	}
	return uint16(e.packetConn.LocalAddr().(*net.UDPAddr).Port)
}

// SendTo sends buf to host:port over a Bound endpoint.
func (e *Endpoint) SendTo(buf []byte, host string, port uint16) (int, error) {
	e.mu.Lock()
	conn := e.packetConn
	timeout := e.writeTO
	e.mu.Unlock()

	if conn == nil {
		return 0, neterr.New(neterr.CodeNotConnected, "send_to on unbound endpoint")
	}

	addr, err := netip.ParseAddr(host)
	var udpAddr *net.UDPAddr
	if err == nil {
		udpAddr = net.UDPAddrFromAddrPort(netip.AddrPortFrom(addr, port))
	} else {
		resolved, rerr := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(int(port))))
		if rerr != nil {
			return 0, neterr.Wrap(neterr.CodeHostNotFound, host, rerr)
		}
		udpAddr = resolved
	}

	if timeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(timeout))
		defer conn.SetWriteDeadline(time.Time{})
	}

	n, err := conn.WriteToUDP(buf, udpAddr)
	if err != nil {
		return n, neterr.TranslateOSError(err, "send_to")
	}
	return n, nil
}

// RecvFrom reads one datagram into buf, returning the sender's address.
func (e *Endpoint) RecvFrom(buf []byte) (int, netip.AddrPort, error) {
	e.mu.Lock()
	conn := e.packetConn
	timeout := e.readTO
	e.mu.Unlock()

	if conn == nil {
		return 0, netip.AddrPort{}, neterr.New(neterr.CodeNotConnected, "recv_from on unbound endpoint")
	}

	if timeout > 0 {
		conn.SetReadDeadline(time.Now().Add(timeout))
		defer conn.SetReadDeadline(time.Time{})
	}

	n, from, err := conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		return n, netip.AddrPort{}, neterr.TranslateOSError(err, "recv_from")
	}
	return n, from, nil
}

// Write sends buf to the peer associated by Connect.
func (e *Endpoint) Write(buf []byte) (int, error) {
	e.mu.Lock()
	conn := e.peerConn
	timeout := e.writeTO
	e.mu.Unlock()

	if conn == nil {
		return 0, neterr.New(neterr.CodeNotConnected, "write on unconnected endpoint")
	}
	if timeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(timeout))
		defer conn.SetWriteDeadline(time.Time{})
	}
	n, err := conn.Write(buf)
	if err != nil {
		return n, neterr.TranslateOSError(err, "write")
	}
	return n, nil
}

// Read receives one datagram from the peer associated by Connect.
func (e *Endpoint) Read(buf []byte) (int, error) {
	e.mu.Lock()
	conn := e.peerConn
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
		return n, neterr.TranslateOSError(err, "read")
	}
	return n, nil
}

// Close releases the underlying socket, whichever role is active.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var err error
	if e.packetConn != nil {
		err = e.packetConn.Close()
		e.packetConn = nil
	}
	if e.peerConn != nil {
		if cerr := e.peerConn.Close(); cerr != nil && err == nil {
			err = cerr
		}
		e.peerConn = nil
	}
	if err != nil {
		return neterr.TranslateOSError(err, "close")
	}
	return nil
}
