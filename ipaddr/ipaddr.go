// Package ipaddr implements the IpAddress value type: parsing, formatting,
// masking and ordering of IPv4 and IPv6 addresses (component A).
package ipaddr

import (
	"net/netip"

	"github.com/DNS-OARC/gonet/neterr"
)

// Family identifies the address family carried by an Address. The zero
// value, FamilyUnknown, marks an address that was default-constructed and
// never parsed or assigned — per the data model invariant it cannot be
// serialized, masked, or compared except for equality against another
// Unknown address.
type Family uint8

const (
	FamilyUnknown Family = iota
	FamilyV4
	FamilyV6
)

func (f Family) String() string {
	switch f {
	case FamilyV4:
		return "v4"
	case FamilyV6:
		return "v6"
	default:
		return "unknown"
	}
}

// Address is a tagged IPv4/IPv6 value. The zero Address is Unknown.
//
// Internally an Address wraps netip.Addr, which already canonicalizes
// IPv6 formatting per RFC 5952 and orders addresses family-first then
// lexicographically — exactly the invariants component A requires.
type Address struct {
	family Family
	addr   netip.Addr
}

// Unknown is the zero-value Address, returned by operations that have no
// meaningful result to produce.
var Unknown = Address{}

// Parse parses s as an IPv4 or IPv6 textual address. The presence of ':'
// selects IPv6 parsing per component A; any other input that fails to
// parse raises CodeInvalidIPAddress.
func Parse(s string) (Address, error) {
	a, err := netip.ParseAddr(s)
	if err != nil {
		return Address{}, neterr.Wrap(neterr.CodeInvalidIPAddress, s, err)
	}
	a = a.Unmap()
	if a.Is4() {
		return Address{family: FamilyV4, addr: a}, nil
	}
	return Address{family: FamilyV6, addr: a}, nil
}

// MustParse is like Parse but panics on error; intended for tests and
// compile-time constants.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromRaw constructs an Address from raw bytes: len(b) must be 4 for
// FamilyV4 or 16 for FamilyV6.
func FromRaw(family Family, b []byte) (Address, error) {
	switch family {
	case FamilyV4:
		if len(b) != 4 {
			return Address{}, neterr.New(neterr.CodeInvalidIPAddress, "v4 address requires 4 bytes")
		}
		return Address{family: FamilyV4, addr: netip.AddrFrom4([4]byte(b))}, nil
	case FamilyV6:
		if len(b) != 16 {
			return Address{}, neterr.New(neterr.CodeInvalidIPAddress, "v6 address requires 16 bytes")
		}
		return Address{family: FamilyV6, addr: netip.AddrFrom16([16]byte(b))}, nil
	default:
		return Address{}, neterr.New(neterr.CodeInvalidIPAddress, "unknown address family")
	}
}

// AllOnes returns the all-ones address of the given family (255.255.255.255
// or ffff:...:ffff), used by mask-invariant tests.
func AllOnes(family Family) Address {
	switch family {
	case FamilyV4:
		return Address{family: FamilyV4, addr: netip.AddrFrom4([4]byte{0xff, 0xff, 0xff, 0xff})}
	case FamilyV6:
		var b [16]byte
		for i := range b {
			b[i] = 0xff
		}
		return Address{family: FamilyV6, addr: netip.AddrFrom16(b)}
	default:
		return Address{}
	}
}

// Family returns the address family.
func (a Address) Family() Family { return a.family }

// IsUnknown reports whether a is the Unknown (zero) address.
func (a Address) IsUnknown() bool { return a.family == FamilyUnknown }

// String formats a in its canonical textual form. An Unknown address
// formats as the empty string.
func (a Address) String() string {
	if a.family == FamilyUnknown {
		return ""
	}
	return a.addr.String()
}

// Bytes returns the address's raw bytes: 4 for V4, 16 for V6, nil for
// Unknown.
func (a Address) Bytes() []byte {
	switch a.family {
	case FamilyV4:
		b := a.addr.As4()
		return b[:]
	case FamilyV6:
		b := a.addr.As16()
		return b[:]
	default:
		return nil
	}
}

// bitLen returns the number of address bits for a's family.
func (a Address) bitLen() int {
	if a.family == FamilyV4 {
		return 32
	}
	return 128
}

// Mask returns a new Address with the low (bitLen-prefixLen) bits zeroed.
// prefixLen must be in [0,32] for V4 or [0,128] for V6, else
// CodeInvalidNetmaskOrPrefixlen is raised.
func (a Address) Mask(prefixLen int) (Address, error) {
	if a.family == FamilyUnknown {
		return Address{}, neterr.New(neterr.CodeInvalidNetmaskOrPrefixlen, "cannot mask an unknown address")
	}
	if prefixLen < 0 || prefixLen > a.bitLen() {
		return Address{}, neterr.New(neterr.CodeInvalidNetmaskOrPrefixlen, "prefix length out of range")
	}
	prefix := netip.PrefixFrom(a.addr, prefixLen)
	masked := prefix.Masked()
	return Address{family: a.family, addr: masked.Addr()}, nil
}

// Compare orders a relative to b: by family first (V4 < V6), then
// lexicographically over the address bytes. Two Unknown addresses compare
// equal; an Unknown address compares before any known address.
func (a Address) Compare(b Address) int {
	if a.family == FamilyUnknown || b.family == FamilyUnknown {
		switch {
		case a.family == FamilyUnknown && b.family == FamilyUnknown:
			return 0
		case a.family == FamilyUnknown:
			return -1
		default:
			return 1
		}
	}
	return a.addr.Compare(b.addr)
}

// Less reports whether a sorts before b.
func (a Address) Less(b Address) bool { return a.Compare(b) < 0 }

// Equal reports whether a and b denote the same address. Unknown is only
// ever equal to Unknown, per the data model invariant.
func (a Address) Equal(b Address) bool {
	if a.family == FamilyUnknown || b.family == FamilyUnknown {
		return a.family == b.family
	}
	return a.addr == b.addr
}

// IsLoopback, IsPrivate and IsMulticast delegate to netip.Addr's
// classification — there is no meaningful gonet-specific variant of these
// checks worth reimplementing.
func (a Address) IsLoopback() bool  { return a.family != FamilyUnknown && a.addr.IsLoopback() }
func (a Address) IsPrivate() bool   { return a.family != FamilyUnknown && a.addr.IsPrivate() }
func (a Address) IsMulticast() bool { return a.family != FamilyUnknown && a.addr.IsMulticast() }

// Netip exposes the underlying netip.Addr for callers that need to
// interoperate with the standard library (e.g. net.Dialer, net.ListenConfig).
func (a Address) Netip() netip.Addr { return a.addr }

// FromNetip adapts a netip.Addr into an Address.
func FromNetip(a netip.Addr) Address {
	if !a.IsValid() {
		return Address{}
	}
	a = a.Unmap()
	if a.Is4() {
		return Address{family: FamilyV4, addr: a}
	}
	return Address{family: FamilyV6, addr: a}
}
