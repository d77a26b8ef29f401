package tcpsock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/DNS-OARC/gonet/tcpsock"
	"github.com/DNS-OARC/gonet/tlsctx"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestConnectAndAcceptRoundTrip(t *testing.T) {
	t.Parallel()

	server := tcpsock.New()
	if err := server.Bind("127.0.0.1", 0); err != nil {
		t.Fatalf("Bind error = %v", err)
	}

	port := server.ListenerPort()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = server.Listen(16, 50*time.Millisecond, func(conn *tcpsock.Endpoint, _ string, _ uint16) bool {
			buf := make([]byte, 5)
			if _, err := conn.ReadLoop(buf, 2*time.Second, nil); err != nil {
				t.Errorf("server ReadLoop error = %v", err)
				return false
			}
			if string(buf) != "hello" {
				t.Errorf("server got %q, want %q", buf, "hello")
			}
			if _, err := conn.Write([]byte("world")); err != nil {
				t.Errorf("server Write error = %v", err)
			}
			conn.Disconnect()
			server.SignalStop()
			return true
		})
	}()

	client := tcpsock.New()
	if err := client.Connect(context.Background(), "127.0.0.1", port); err != nil {
		t.Fatalf("Connect error = %v", err)
	}
	defer client.Disconnect()

	if _, err := client.Write([]byte("hello")); err != nil {
		t.Fatalf("client Write error = %v", err)
	}

	resp := make([]byte, 5)
	if _, err := client.ReadLoop(resp, 2*time.Second, nil); err != nil {
		t.Fatalf("client ReadLoop error = %v", err)
	}
	if string(resp) != "world" {
		t.Fatalf("client got %q, want %q", resp, "world")
	}

	wg.Wait()
}

func TestReadLoopTimesOut(t *testing.T) {
	t.Parallel()

	server := tcpsock.New()
	if err := server.Bind("127.0.0.1", 0); err != nil {
		t.Fatalf("Bind error = %v", err)
	}
	port := server.ListenerPort()

	go func() {
		_ = server.Listen(16, 50*time.Millisecond, func(conn *tcpsock.Endpoint, _ string, _ uint16) bool {
			time.Sleep(500 * time.Millisecond)
			conn.Disconnect()
			return true
		})
	}()
	defer server.Stop()

	client := tcpsock.New()
	if err := client.Connect(context.Background(), "127.0.0.1", port); err != nil {
		t.Fatalf("Connect error = %v", err)
	}
	defer client.Disconnect()

	buf := make([]byte, 10)
	_, err := client.ReadLoop(buf, 100*time.Millisecond, nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestTLSHandshakeRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	certPath, keyPath := generateSelfSignedCert(t, dir)

	serverCtx := tlsctx.New()
	if err := serverCtx.Init(tlsctx.MethodTlsServer); err != nil {
		t.Fatalf("server Init error = %v", err)
	}
	if err := serverCtx.LoadCertificate(certPath, keyPath, ""); err != nil {
		t.Fatalf("LoadCertificate error = %v", err)
	}

	clientCtx := tlsctx.New()
	if err := clientCtx.Init(tlsctx.MethodTlsClient); err != nil {
		t.Fatalf("client Init error = %v", err)
	}
	if err := clientCtx.LoadTrustedCAFromFile(certPath); err != nil {
		t.Fatalf("LoadTrustedCAFromFile error = %v", err)
	}

	server := tcpsock.New()
	if err := server.Bind("127.0.0.1", 0); err != nil {
		t.Fatalf("Bind error = %v", err)
	}
	port := server.ListenerPort()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = server.Listen(16, 50*time.Millisecond, func(conn *tcpsock.Endpoint, _ string, _ uint16) bool {
			handle, err := serverCtx.NewHandle()
			if err != nil {
				t.Errorf("server NewHandle error = %v", err)
				return false
			}
			if err := conn.TLSAccept(handle); err != nil {
				t.Errorf("TLSAccept error = %v", err)
				return false
			}
			buf := make([]byte, 4)
			if _, err := conn.ReadLoop(buf, 2*time.Second, nil); err != nil {
				t.Errorf("server ReadLoop error = %v", err)
			}
			conn.TLSStop()
			conn.Disconnect()
			server.SignalStop()
			return true
		})
	}()

	client := tcpsock.New()
	if err := client.Connect(context.Background(), "127.0.0.1", port); err != nil {
		t.Fatalf("Connect error = %v", err)
	}
	handle, err := clientCtx.NewHandle()
	if err != nil {
		t.Fatalf("client NewHandle error = %v", err)
	}
	if err := client.TLSStart(handle); err != nil {
		t.Fatalf("TLSStart error = %v", err)
	}
	if err := client.TLSCheckCertificate("localhost", true); err != nil {
		t.Fatalf("TLSCheckCertificate error = %v", err)
	}
	if _, err := client.Write([]byte("ping")); err != nil {
		t.Fatalf("client Write error = %v", err)
	}
	client.TLSStop()
	client.Disconnect()

	wg.Wait()
}
