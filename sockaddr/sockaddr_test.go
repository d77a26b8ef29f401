//go:build linux

package sockaddr_test

import (
	"testing"

	"github.com/DNS-OARC/gonet/ipaddr"
	"github.com/DNS-OARC/gonet/sockaddr"
)

func TestRoundTripV4(t *testing.T) {
	t.Parallel()

	addr := ipaddr.MustParse("192.168.1.10")
	sa, err := sockaddr.From(addr, 8080)
	if err != nil {
		t.Fatalf("From error = %v", err)
	}

	got, err := sa.IPAddress()
	if err != nil {
		t.Fatalf("IPAddress error = %v", err)
	}
	if !got.Equal(addr) {
		t.Errorf("IPAddress() = %v, want %v", got, addr)
	}
	if sa.Port() != 8080 {
		t.Errorf("Port() = %d, want 8080", sa.Port())
	}
	if want := "192.168.1.10:8080"; sa.String() != want {
		t.Errorf("String() = %q, want %q", sa.String(), want)
	}
}

func TestRoundTripV6(t *testing.T) {
	t.Parallel()

	addr := ipaddr.MustParse("2001:db8::1")
	sa, err := sockaddr.From(addr, 443)
	if err != nil {
		t.Fatalf("From error = %v", err)
	}

	got, err := sa.IPAddress()
	if err != nil {
		t.Fatalf("IPAddress error = %v", err)
	}
	if !got.Equal(addr) {
		t.Errorf("IPAddress() = %v, want %v", got, addr)
	}
	if sa.Port() != 443 {
		t.Errorf("Port() = %d, want 443", sa.Port())
	}
}

func TestFromUnknownFails(t *testing.T) {
	t.Parallel()

	if _, err := sockaddr.From(ipaddr.Unknown, 80); err == nil {
		t.Error("From(Unknown) should fail")
	}
}
