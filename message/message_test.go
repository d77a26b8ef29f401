package message_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/DNS-OARC/gonet/message"
	"github.com/DNS-OARC/gonet/neterr"
	"github.com/DNS-OARC/gonet/watch"
)

// fakeConn is an in-memory conn backed by a byte pipe, for exercising
// SendMessage/WaitMessage without a real socket.
type fakeConn struct {
	buf bytes.Buffer
}

func (f *fakeConn) Write(p []byte) (int, error) {
	return f.buf.Write(p)
}

func (f *fakeConn) ReadLoop(p []byte, _ time.Duration, _ watch.Watch) (int, error) {
	n, err := f.buf.Read(p)
	if err != nil {
		return n, err
	}
	if n < len(p) {
		return n, neterr.New(neterr.CodeTimeout, "short read from fake conn")
	}
	return n, nil
}

func TestFramedEchoRoundTrip(t *testing.T) {
	t.Parallel()

	c := &fakeConn{}
	out := &message.SocketMessage{
		CommandID: 0x1234,
		ID:        0xCAFEBABE,
	}
	out.SetString("hello")

	if err := message.SendMessage(c, out); err != nil {
		t.Fatalf("SendMessage error = %v", err)
	}

	in, ok, err := message.WaitMessage(c, 2*time.Second, nil)
	if err != nil {
		t.Fatalf("WaitMessage error = %v", err)
	}
	if !ok {
		t.Fatal("WaitMessage returned ok=false")
	}
	if in.CommandID != 0x1234 || in.ID != 0xCAFEBABE {
		t.Fatalf("got CommandID=%#x ID=%#x, want 0x1234/0xCAFEBABE", in.CommandID, in.ID)
	}
	s, err := in.String()
	if err != nil {
		t.Fatalf("String error = %v", err)
	}
	if s != "hello" {
		t.Fatalf("got payload %q, want %q", s, "hello")
	}
}

func TestCompressedLargePayload(t *testing.T) {
	t.Parallel()

	c := &fakeConn{}
	payload := strings.Repeat("gonet-compressible-payload-", 200) // > 4 KiB, highly repetitive
	out := &message.SocketMessage{}
	out.SetString(payload)
	out.UseCompression = true
	out.PeerSupportsCompression = true

	if err := message.SendMessage(c, out); err != nil {
		t.Fatalf("SendMessage error = %v", err)
	}

	if c.buf.Len() >= len(payload) {
		t.Fatalf("wire size %d did not shrink below payload size %d", c.buf.Len(), len(payload))
	}

	in, ok, err := message.WaitMessage(c, 2*time.Second, nil)
	if err != nil {
		t.Fatalf("WaitMessage error = %v", err)
	}
	if !ok {
		t.Fatal("WaitMessage returned ok=false")
	}
	got, err := in.String()
	if err != nil {
		t.Fatalf("String error = %v", err)
	}
	if got != payload {
		t.Fatal("decompressed payload did not match original")
	}
}

func TestWaitMessageRejectsBadMagic(t *testing.T) {
	t.Parallel()

	c := &fakeConn{}
	c.buf.Write(make([]byte, 24))

	_, _, err := message.WaitMessage(c, 2*time.Second, nil)
	if neterr.CodeOf(err) != neterr.CodeInvalidProtocolVersion {
		t.Fatalf("CodeOf(err) = %v, want CodeInvalidProtocolVersion", neterr.CodeOf(err))
	}
}

func TestWaitMessageDetectsPayloadCorruption(t *testing.T) {
	t.Parallel()

	c := &fakeConn{}
	out := &message.SocketMessage{}
	out.SetString("integrity check")
	if err := message.SendMessage(c, out); err != nil {
		t.Fatalf("SendMessage error = %v", err)
	}

	// Flip a payload byte after it has been written and CRC'd.
	raw := c.buf.Bytes()
	raw[len(raw)-1] ^= 0xFF

	_, _, err := message.WaitMessage(c, 2*time.Second, nil)
	if neterr.CodeOf(err) != neterr.CodeInvalidPacket {
		t.Fatalf("CodeOf(err) = %v, want CodeInvalidPacket", neterr.CodeOf(err))
	}
}

func TestSmallPayloadNeverCompressed(t *testing.T) {
	t.Parallel()

	c := &fakeConn{}
	out := &message.SocketMessage{UseCompression: true, PeerSupportsCompression: true}
	out.SetString("short")

	if err := message.SendMessage(c, out); err != nil {
		t.Fatalf("SendMessage error = %v", err)
	}
	// Header byte 12 holds the flags; bit 0 marks a compressed payload.
	if flags := c.buf.Bytes()[12]; flags&0x01 != 0 {
		t.Fatalf("flags = %#x, small payload was sent compressed", flags)
	}

	in, ok, err := message.WaitMessage(c, 2*time.Second, nil)
	if err != nil || !ok {
		t.Fatalf("WaitMessage error = %v, ok = %v", err, ok)
	}
	if in.PayloadType != message.PayloadString {
		t.Fatalf("PayloadType = %v, want PayloadString", in.PayloadType)
	}
}
