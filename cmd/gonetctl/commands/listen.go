package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/DNS-OARC/gonet/message"
	"github.com/DNS-OARC/gonet/tcpsock"
	"github.com/DNS-OARC/gonet/tlsctx"
)

// errEchoTimedOut is returned by dial when no echoed framed message
// arrives within --timeout.
var errEchoTimedOut = errors.New("timed out waiting for peer")

func listenCmd() *cobra.Command {
	var (
		tlsEnabled bool
		certFile   string
		keyFile    string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "listen <addr>",
		Short: "Bind a tcpsock listener and echo back any framed message received",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			host, portStr, err := net.SplitHostPort(args[0])
			if err != nil {
				return fmt.Errorf("parse address %q: %w", args[0], err)
			}
			port, err := strconv.ParseUint(portStr, 10, 16)
			if err != nil {
				return fmt.Errorf("parse port %q: %w", portStr, err)
			}

			var tlsCtx *tlsctx.Context
			if tlsEnabled {
				tlsCtx = tlsctx.New()
				if err := tlsCtx.Init(tlsctx.MethodTlsServer); err != nil {
					return fmt.Errorf("init tls context: %w", err)
				}
				if err := tlsCtx.LoadCertificate(certFile, keyFile, ""); err != nil {
					return fmt.Errorf("load server certificate: %w", err)
				}
			}

			ep := tcpsock.New()
			if err := ep.Bind(host, uint16(port)); err != nil {
				return fmt.Errorf("bind %s: %w", args[0], err)
			}

			fmt.Printf("listening on %s:%d\n", host, ep.ListenerPort())

			handler := func(conn *tcpsock.Endpoint, peerHost string, peerPort uint16) bool {
				go echoConn(conn, peerHost, peerPort, tlsCtx, timeout)
				return true
			}

			if err := ep.Listen(128, 200*time.Millisecond, handler); err != nil {
				return fmt.Errorf("listen: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&tlsEnabled, "tls", false, "require a TLS handshake from each connecting peer")
	cmd.Flags().StringVar(&certFile, "cert", "", "server certificate file (required with --tls)")
	cmd.Flags().StringVar(&keyFile, "key", "", "server private key file (required with --tls)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "per-connection handshake/read timeout")

	return cmd
}

// echoConn serves a single accepted connection: optionally completes a
// server-side TLS handshake, then echoes back every framed message it
// receives until the peer disconnects or timeout elapses.
func echoConn(conn *tcpsock.Endpoint, peerHost string, peerPort uint16, tlsCtx *tlsctx.Context, timeout time.Duration) {
	defer conn.Disconnect()
	peer := net.JoinHostPort(peerHost, strconv.Itoa(int(peerPort)))

	if tlsCtx != nil {
		handle, err := tlsCtx.NewHandle()
		if err != nil {
			slog.Error("new tls handle", "peer", peer, "err", err)
			return
		}
		if err := conn.TLSWaitForAccept(handle, timeout, nil); err != nil {
			slog.Error("tls accept", "peer", peer, "err", err)
			return
		}
	}

	for {
		in, ok, err := message.WaitMessage(conn, timeout, nil)
		if err != nil {
			slog.Error("wait message", "peer", peer, "err", err)
			return
		}
		if !ok {
			return
		}

		out := &message.SocketMessage{
			CommandID:               in.CommandID,
			ID:                      in.ID,
			Payload:                 in.Payload,
			PayloadType:             in.PayloadType,
			UseCompression:          true,
			PeerSupportsCompression: in.PeerSupportsCompression,
		}
		if err := message.SendMessage(conn, out); err != nil {
			slog.Error("send echo", "peer", peer, "err", err)
			return
		}
	}
}
