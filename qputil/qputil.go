// Package qputil provides the small quoted-printable encode/decode helper
// that rounds out component G. There is no third-party quoted-printable
// codec in the reference corpus; mime/quotedprintable is the standard
// library's own implementation of RFC 2045 and is used as-is rather than
// reimplemented.
package qputil

import (
	"bytes"
	"io"
	"mime/quotedprintable"

	"github.com/DNS-OARC/gonet/neterr"
)

// Encode quoted-printable encodes data in binary mode: line-break bytes are
// escaped (=0D, =0A) rather than normalized to CRLF, so Decode returns the
// input byte for byte.
func Encode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := quotedprintable.NewWriter(&buf)
	w.Binary = true
	if _, err := w.Write(data); err != nil {
		return nil, neterr.Wrap(neterr.CodeIllegalArgument, "qputil.Encode", err)
	}
	if err := w.Close(); err != nil {
		return nil, neterr.Wrap(neterr.CodeIllegalArgument, "qputil.Encode", err)
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode.
func Decode(data []byte) ([]byte, error) {
	r := quotedprintable.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, neterr.Wrap(neterr.CodeIllegalArgument, "qputil.Decode", err)
	}
	return out, nil
}
