// Package ipnet implements the IpNetwork value type: CIDR parsing
// (decimal prefix length or dotted/colon netmask), containment and
// ordering (component A).
package ipnet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/DNS-OARC/gonet/ipaddr"
	"github.com/DNS-OARC/gonet/neterr"
)

// Network is an (base address, prefix length) pair. The stored base is
// always canonicalized: Parse and New mask the supplied address with
// prefixLen, so e.g. "192.168.1.5/24" stores base 192.168.1.0/24.
type Network struct {
	base      ipaddr.Address
	prefixLen int
}

// New constructs a Network from an address and prefix length, masking the
// address down to the network's base per the invariant above.
func New(addr ipaddr.Address, prefixLen int) (Network, error) {
	base, err := addr.Mask(prefixLen)
	if err != nil {
		return Network{}, err
	}
	return Network{base: base, prefixLen: prefixLen}, nil
}

// Parse parses s in "addr/prefix" form. prefix is either a decimal integer
// in the family's valid range, or a dotted (V4) / colon (V6) netmask whose
// bit pattern must be a contiguous run of 1-bits followed only by 0-bits.
func Parse(s string) (Network, error) {
	slash := strings.IndexByte(s, '/')
	if slash < 0 {
		return Network{}, neterr.New(neterr.CodeInvalidNetworkAddress, s)
	}

	addrPart, prefixPart := s[:slash], s[slash+1:]
	addr, err := ipaddr.Parse(addrPart)
	if err != nil {
		return Network{}, neterr.Wrap(neterr.CodeInvalidNetworkAddress, s, err)
	}

	prefixLen, err := resolvePrefixLen(addr.Family(), prefixPart)
	if err != nil {
		return Network{}, err
	}

	return New(addr, prefixLen)
}

// resolvePrefixLen interprets prefixPart as a decimal prefix length if it
// parses as one, otherwise as a dotted/colon netmask.
func resolvePrefixLen(family ipaddr.Family, prefixPart string) (int, error) {
	if n, err := strconv.Atoi(prefixPart); err == nil {
		maxLen := 32
		if family == ipaddr.FamilyV6 {
			maxLen = 128
		}
		if n < 0 || n > maxLen {
			return 0, neterr.New(neterr.CodeInvalidNetmaskOrPrefixlen, prefixPart)
		}
		return n, nil
	}
	return PrefixLenFromNetmask(prefixPart)
}

// netmaskByteBits maps a single all-or-leading-ones netmask byte to the
// number of leading 1-bits it contributes. Any byte not in this table (and
// not 0xff, handled separately) is not a valid netmask byte.
var netmaskByteBits = map[byte]int{
	0xfe: 7,
	0xfc: 6,
	0xf8: 5,
	0xf0: 4,
	0xe0: 3,
	0xc0: 2,
	0x80: 1,
	0x00: 0,
}

// PrefixLenFromNetmask validates that s is a dotted (V4) or colon-hex (V6)
// netmask whose bytes form a contiguous run of 1-bits followed only by
// 0-bits, and returns the equivalent prefix length.
//
// Examples: "255.255.255.0" -> 24, "255.255.254.0" -> 23,
// "255.255.255.192" -> 26; "255.0.255.0" and "255.255.255.1" are invalid.
func PrefixLenFromNetmask(s string) (int, error) {
	addr, err := ipaddr.Parse(s)
	if err != nil {
		return 0, neterr.Wrap(neterr.CodeInvalidNetmaskOrPrefixlen, s, err)
	}

	bytes := addr.Bytes()
	prefixLen := 0
	sawNonFF := false

	for _, b := range bytes {
		if !sawNonFF && b == 0xff {
			prefixLen += 8
			continue
		}
		if sawNonFF {
			if b != 0x00 {
				return 0, neterr.New(neterr.CodeInvalidNetmaskOrPrefixlen, s)
			}
			continue
		}
		sawNonFF = true
		bits, ok := netmaskByteBits[b]
		if !ok {
			return 0, neterr.New(neterr.CodeInvalidNetmaskOrPrefixlen, s)
		}
		prefixLen += bits
	}

	return prefixLen, nil
}

// Base returns the network's canonical base address.
func (n Network) Base() ipaddr.Address { return n.base }

// PrefixLen returns the network's prefix length.
func (n Network) PrefixLen() int { return n.prefixLen }

// First returns the first usable address in the network (the base).
func (n Network) First() ipaddr.Address { return n.base }

// Last returns the last address in the network: base | ~netmask.
func (n Network) Last() ipaddr.Address {
	bits := n.base.Bytes()
	out := make([]byte, len(bits))
	copy(out, bits)
	hostBits := len(bits)*8 - n.prefixLen

	for i := len(bits) - 1; i >= 0 && hostBits > 0; i-- {
		switch {
		case hostBits >= 8:
			out[i] |= 0xff
			hostBits -= 8
		default:
			out[i] |= 0xff >> uint(8-hostBits)
			hostBits = 0
		}
	}

	last, err := ipaddr.FromRaw(n.base.Family(), out)
	if err != nil {
		// Unreachable: out has the same length as bits by construction.
		return n.base
	}
	return last
}

// Contains reports whether addr falls within [First, Last].
func (n Network) Contains(addr ipaddr.Address) bool {
	if addr.Family() != n.base.Family() {
		return false
	}
	return n.First().Compare(addr) <= 0 && n.Last().Compare(addr) >= 0
}

// Compare orders networks by base address, with a longer (more specific)
// prefix sorting first on ties.
func (n Network) Compare(other Network) int {
	if c := n.base.Compare(other.base); c != 0 {
		return c
	}
	if n.prefixLen == other.prefixLen {
		return 0
	}
	if n.prefixLen > other.prefixLen {
		return -1
	}
	return 1
}

// String formats n as "base/prefixLen".
func (n Network) String() string {
	return fmt.Sprintf("%s/%d", n.base.String(), n.prefixLen)
}
