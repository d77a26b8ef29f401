package idna_test

import (
	"testing"

	gonetidna "github.com/DNS-OARC/gonet/idna"
)

func TestToACEAndBack(t *testing.T) {
	t.Parallel()

	ace, err := gonetidna.ToACE("münchen.de")
	if err != nil {
		t.Fatalf("ToACE error = %v", err)
	}
	if ace != "xn--mnchen-3ya.de" {
		t.Errorf("ToACE() = %q, want xn--mnchen-3ya.de", ace)
	}

	uni, err := gonetidna.ToUnicode(ace)
	if err != nil {
		t.Fatalf("ToUnicode error = %v", err)
	}
	if uni != "münchen.de" {
		t.Errorf("ToUnicode() = %q, want münchen.de", uni)
	}
}

func TestToACEPassesThroughASCII(t *testing.T) {
	t.Parallel()

	ace, err := gonetidna.ToACE("example.com")
	if err != nil {
		t.Fatalf("ToACE error = %v", err)
	}
	if ace != "example.com" {
		t.Errorf("ToACE() = %q, want example.com", ace)
	}
}
