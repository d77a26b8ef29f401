package commands

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/DNS-OARC/gonet/message"
	"github.com/DNS-OARC/gonet/tcpsock"
	"github.com/DNS-OARC/gonet/tlsctx"
)

func dialCmd() *cobra.Command {
	var (
		tlsEnabled bool
		caFile     string
		send       string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "dial <host:port>",
		Short: "Connect to a tcpsock endpoint, optionally send a framed message, and print the echo",
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

			ep := tcpsock.New()
			ep.SetConnectTimeout(timeout)
			ep.SetReadTimeout(timeout)
			ep.SetWriteTimeout(timeout)

			if err := ep.Connect(c.Context(), host, uint16(port)); err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer ep.Disconnect()

			if tlsEnabled {
				ctx := tlsctx.New()
				if err := ctx.Init(tlsctx.MethodTlsClient); err != nil {
					return fmt.Errorf("init tls context: %w", err)
				}
				if caFile != "" {
					if err := ctx.LoadTrustedCAFromFile(caFile); err != nil {
						return fmt.Errorf("load CA: %w", err)
					}
				}
				handle, err := ctx.NewHandle()
				if err != nil {
					return fmt.Errorf("new tls handle: %w", err)
				}
				if err := ep.TLSStart(handle); err != nil {
					return fmt.Errorf("tls handshake: %w", err)
				}
				fmt.Printf("tls: version=%s cipher=%s\n", ep.TLSVersion(), ep.TLSCipherName())
			}

			if send == "" {
				fmt.Println("connected")
				return nil
			}

			out := &message.SocketMessage{UseCompression: true, PeerSupportsCompression: true}
			out.SetString(send)
			if err := message.SendMessage(ep, out); err != nil {
				return fmt.Errorf("send message: %w", err)
			}

			in, ok, err := message.WaitMessage(ep, timeout, nil)
			if err != nil {
				return fmt.Errorf("wait for echo: %w", err)
			}
			if !ok {
				return fmt.Errorf("wait for echo: %w", errEchoTimedOut)
			}
			reply, err := in.String()
			if err != nil {
				return fmt.Errorf("decode echo payload: %w", err)
			}
			fmt.Println(reply)
			return nil
		},
	}

	cmd.Flags().BoolVar(&tlsEnabled, "tls", false, "upgrade the connection to TLS before sending")
	cmd.Flags().StringVar(&caFile, "ca", "", "trusted CA bundle for verifying the server")
	cmd.Flags().StringVar(&send, "send", "", "send this string as a framed message and print the echoed reply")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "connect/read/write timeout")

	return cmd
}
