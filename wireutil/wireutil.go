// Package wireutil holds the small big-endian byte-order helpers used by
// the message package, plus a random salt generator for the framed message
// header.
package wireutil

import (
	"crypto/rand"
	"encoding/binary"
)

// PutUint16, PutUint32, Uint16 and Uint32 are thin re-exports of
// encoding/binary.BigEndian so callers assembling wire headers don't need
// to import both this package and encoding/binary for a one-line op.
func PutUint16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }
func PutUint32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func Uint16(b []byte) uint16       { return binary.BigEndian.Uint16(b) }
func Uint32(b []byte) uint32       { return binary.BigEndian.Uint32(b) }

// RandomSalt returns a 16-bit value suitable for the frame header's salt
// field: a nonce that diversifies the header CRC across otherwise-identical
// messages. It is not required to be cryptographically unpredictable, only
// to vary; crypto/rand is used because it is always available without a
// process-global PRNG to seed.
func RandomSalt() uint16 {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand.Read on a supported platform does not fail in
		// practice; degrade to a fixed salt rather than panic.
		return 0
	}
	return binary.BigEndian.Uint16(b[:])
}
