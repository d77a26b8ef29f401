package ipaddr_test

import (
	"testing"

	"github.com/DNS-OARC/gonet/ipaddr"
)

func TestParseFormatRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     string
		want   string
		family ipaddr.Family
	}{
		{"v4 dotted decimal", "192.168.1.10", "192.168.1.10", ipaddr.FamilyV4},
		{"v6 canonicalized", "2001:0db8:0000:0000:0000:0000:0000:0001", "2001:db8::1", ipaddr.FamilyV6},
		{"v6 already canonical", "::1", "::1", ipaddr.FamilyV6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a, err := ipaddr.Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.in, err)
			}
			if got := a.String(); got != tt.want {
				t.Errorf("Parse(%q).String() = %q, want %q", tt.in, got, tt.want)
			}
			if a.Family() != tt.family {
				t.Errorf("Parse(%q).Family() = %v, want %v", tt.in, a.Family(), tt.family)
			}

			// parse(format(parse(a))) == parse(a)
			b, err := ipaddr.Parse(a.String())
			if err != nil {
				t.Fatalf("re-parse error: %v", err)
			}
			if !a.Equal(b) {
				t.Errorf("round-trip mismatch: %v != %v", a, b)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "not-an-ip", "999.999.999.999", "1.2.3"} {
		if _, err := ipaddr.Parse(s); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", s)
		}
	}
}

func TestUnknownInvariants(t *testing.T) {
	t.Parallel()

	var u ipaddr.Address
	if !u.IsUnknown() {
		t.Fatal("zero Address is not Unknown")
	}
	if u.String() != "" {
		t.Errorf("Unknown.String() = %q, want empty", u.String())
	}
	if _, err := u.Mask(0); err == nil {
		t.Error("Mask on Unknown address should fail")
	}

	other := ipaddr.MustParse("10.0.0.1")
	if u.Equal(other) {
		t.Error("Unknown must not equal a known address")
	}
	if !u.Equal(ipaddr.Unknown) {
		t.Error("Unknown must equal Unknown")
	}
}

func TestMaskInvariant(t *testing.T) {
	t.Parallel()

	for p := 0; p <= 32; p++ {
		all := ipaddr.AllOnes(ipaddr.FamilyV4)
		masked, err := all.Mask(p)
		if err != nil {
			t.Fatalf("Mask(%d) error = %v", p, err)
		}
		if countLeadingOnes(masked.Bytes()) != p {
			t.Errorf("Mask(%d) has %d leading one-bits, want %d", p, countLeadingOnes(masked.Bytes()), p)
		}
	}

	for p := 0; p <= 128; p++ {
		all := ipaddr.AllOnes(ipaddr.FamilyV6)
		masked, err := all.Mask(p)
		if err != nil {
			t.Fatalf("Mask(%d) error = %v", p, err)
		}
		if countLeadingOnes(masked.Bytes()) != p {
			t.Errorf("v6 Mask(%d) has %d leading one-bits, want %d", p, countLeadingOnes(masked.Bytes()), p)
		}
	}
}

func TestMaskOutOfRange(t *testing.T) {
	t.Parallel()

	v4 := ipaddr.MustParse("10.0.0.1")
	if _, err := v4.Mask(33); err == nil {
		t.Error("Mask(33) on v4 should fail")
	}
	if _, err := v4.Mask(-1); err == nil {
		t.Error("Mask(-1) on v4 should fail")
	}

	v6 := ipaddr.MustParse("::1")
	if _, err := v6.Mask(129); err == nil {
		t.Error("Mask(129) on v6 should fail")
	}
}

func TestCompareOrdersFamilyFirst(t *testing.T) {
	t.Parallel()

	v4 := ipaddr.MustParse("255.255.255.255")
	v6 := ipaddr.MustParse("::")

	if v4.Compare(v6) >= 0 {
		t.Error("every v4 address must sort before every v6 address")
	}
	if !v4.Less(v6) {
		t.Error("Less must agree with Compare")
	}
}

func countLeadingOnes(b []byte) int {
	n := 0
	for _, by := range b {
		for bit := 7; bit >= 0; bit-- {
			if by&(1<<uint(bit)) == 0 {
				return n
			}
			n++
		}
	}
	return n
}
