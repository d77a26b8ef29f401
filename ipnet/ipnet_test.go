package ipnet_test

import (
	"testing"

	"github.com/DNS-OARC/gonet/ipaddr"
	"github.com/DNS-OARC/gonet/ipnet"
)

func TestPrefixLenFromNetmask(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mask    string
		want    int
		wantErr bool
	}{
		{"255.255.255.0", 24, false},
		{"255.255.254.0", 23, false},
		{"255.255.255.192", 26, false},
		{"255.0.255.0", 0, true},
		{"255.255.255.1", 0, true},
	}

	for _, tt := range tests {
		got, err := ipnet.PrefixLenFromNetmask(tt.mask)
		if tt.wantErr {
			if err == nil {
				t.Errorf("PrefixLenFromNetmask(%q) succeeded, want error", tt.mask)
			}
			continue
		}
		if err != nil {
			t.Errorf("PrefixLenFromNetmask(%q) error = %v", tt.mask, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PrefixLenFromNetmask(%q) = %d, want %d", tt.mask, got, tt.want)
		}
	}
}

func TestCIDRContainment(t *testing.T) {
	t.Parallel()

	n, err := ipnet.Parse("10.0.0.0/24")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if !n.Contains(ipaddr.MustParse("10.0.0.255")) {
		t.Error("10.0.0.0/24 should contain 10.0.0.255")
	}
	if n.Contains(ipaddr.MustParse("10.0.1.0")) {
		t.Error("10.0.0.0/24 should not contain 10.0.1.0")
	}
	if n.First().String() != "10.0.0.0" {
		t.Errorf("First() = %s, want 10.0.0.0", n.First())
	}
	if n.Last().String() != "10.0.0.255" {
		t.Errorf("Last() = %s, want 10.0.0.255", n.Last())
	}
}

func TestCIDRNetmaskForm(t *testing.T) {
	t.Parallel()

	n, err := ipnet.Parse("10.0.0.0/255.255.255.128")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if n.PrefixLen() != 25 {
		t.Errorf("PrefixLen() = %d, want 25", n.PrefixLen())
	}
}

func TestCanonicalization(t *testing.T) {
	t.Parallel()

	n, err := ipnet.Parse("192.168.1.5/24")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if n.Base().String() != "192.168.1.0" {
		t.Errorf("Base() = %s, want 192.168.1.0", n.Base())
	}
}

func TestFirstMaskInvariant(t *testing.T) {
	t.Parallel()

	for _, cidr := range []string{"10.1.2.3/8", "10.1.2.3/16", "10.1.2.3/24", "10.1.2.3/32"} {
		n, err := ipnet.Parse(cidr)
		if err != nil {
			t.Fatalf("Parse(%q) error = %v", cidr, err)
		}
		masked, err := n.First().Mask(n.PrefixLen())
		if err != nil {
			t.Fatalf("Mask error = %v", err)
		}
		if !masked.Equal(n.First()) {
			t.Errorf("%s: First().Mask(prefixLen) != First()", cidr)
		}
	}
}

func TestOrderingMoreSpecificFirst(t *testing.T) {
	t.Parallel()

	broad, _ := ipnet.Parse("10.0.0.0/8")
	narrow, _ := ipnet.Parse("10.0.0.0/24")

	if narrow.Compare(broad) >= 0 {
		t.Error("more specific (longer prefix) network must sort first on tied base")
	}
}

func TestInvalidNetworkAddress(t *testing.T) {
	t.Parallel()

	if _, err := ipnet.Parse("not-a-cidr"); err == nil {
		t.Error("Parse without '/' should fail")
	}
	if _, err := ipnet.Parse("10.0.0.0/33"); err == nil {
		t.Error("Parse with out-of-range prefix should fail")
	}
}
