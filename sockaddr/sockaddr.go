//go:build linux

// Package sockaddr implements SockAddress (component A): an opaque
// buffer holding either a sockaddr_in or sockaddr_in6 layout, constructible
// from an ipaddr.Address + port and round-trippable back to both.
package sockaddr

import (
	"encoding/binary"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/DNS-OARC/gonet/ipaddr"
	"github.com/DNS-OARC/gonet/neterr"
)

// sizeof sockaddr_in / sockaddr_in6 on Linux.
const (
	sizeofSockaddrIn  = 16
	sizeofSockaddrIn6 = 28
)

// SockAddr is a fixed-size buffer big enough to hold either socket-address
// structure, plus the length actually in use.
type SockAddr struct {
	buf    [sizeofSockaddrIn6]byte
	length int
}

// From builds a SockAddr from addr and port: IPv4 produces an AF_INET
// (sockaddr_in) layout, IPv6 an AF_INET6 (sockaddr_in6) layout.
func From(addr ipaddr.Address, port uint16) (SockAddr, error) {
	var sa SockAddr

	switch addr.Family() {
	case ipaddr.FamilyV4:
		binary.LittleEndian.PutUint16(sa.buf[0:2], uint16(unix.AF_INET))
		binary.BigEndian.PutUint16(sa.buf[2:4], port)
		copy(sa.buf[4:8], addr.Bytes())
		sa.length = sizeofSockaddrIn
	case ipaddr.FamilyV6:
		binary.LittleEndian.PutUint16(sa.buf[0:2], uint16(unix.AF_INET6))
		binary.BigEndian.PutUint16(sa.buf[2:4], port)
		// sin6_flowinfo (4 bytes) stays zero.
		copy(sa.buf[8:24], addr.Bytes())
		sa.length = sizeofSockaddrIn6
	default:
		return SockAddr{}, neterr.New(neterr.CodeInvalidIPAddress, "cannot build a socket address from an unknown family")
	}

	return sa, nil
}

// Len returns the number of meaningful bytes in the buffer.
func (sa SockAddr) Len() int { return sa.length }

// Bytes returns the meaningful prefix of the underlying buffer.
func (sa SockAddr) Bytes() []byte { return sa.buf[:sa.length] }

// family reads the sa_family_t field written by From.
func (sa SockAddr) family() uint16 {
	return binary.LittleEndian.Uint16(sa.buf[0:2])
}

// IPAddress reconstructs the IP address encoded in sa by reading the
// family field and unmarshaling the corresponding layout.
func (sa SockAddr) IPAddress() (ipaddr.Address, error) {
	switch sa.family() {
	case uint16(unix.AF_INET):
		return ipaddr.FromRaw(ipaddr.FamilyV4, sa.buf[4:8])
	case uint16(unix.AF_INET6):
		return ipaddr.FromRaw(ipaddr.FamilyV6, sa.buf[8:24])
	default:
		return ipaddr.Address{}, neterr.New(neterr.CodeInvalidSocket, "unrecognized sa_family in socket address")
	}
}

// Port reconstructs the 16-bit network-order port encoded in sa.
func (sa SockAddr) Port() uint16 {
	return binary.BigEndian.Uint16(sa.buf[2:4])
}

// String formats sa as "host:port", matching ppl7's SockAddress::toString.
func (sa SockAddr) String() string {
	addr, err := sa.IPAddress()
	if err != nil {
		return ""
	}
	port := strconv.FormatUint(uint64(sa.Port()), 10)
	if addr.Family() == ipaddr.FamilyV6 {
		return "[" + addr.String() + "]:" + port
	}
	return addr.String() + ":" + port
}
