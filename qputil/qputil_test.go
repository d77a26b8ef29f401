package qputil_test

import (
	"bytes"
	"testing"

	"github.com/DNS-OARC/gonet/qputil"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	in := []byte("hello = wörld\n")
	enc, err := qputil.Encode(in)
	if err != nil {
		t.Fatalf("Encode error = %v", err)
	}

	dec, err := qputil.Decode(enc)
	if err != nil {
		t.Fatalf("Decode error = %v", err)
	}
	if !bytes.Equal(dec, in) {
		t.Errorf("round trip mismatch: got %q, want %q", dec, in)
	}
}
