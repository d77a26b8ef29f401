package message

import (
	"bytes"
	"compress/flate"
	"hash/crc32"
	"io"

	"github.com/DNS-OARC/gonet/neterr"
	"github.com/DNS-OARC/gonet/wireutil"
)

const (
	magic = 'V'

	headerSizeV1 = 20
	headerSizeV2 = 24

	flagCompressed      = 1 << 0
	flagSenderSupports  = 1 << 1
	flagSupportMsgChan  = 1 << 2

	maxPayloadSize = 1<<32 - 1

	// compressDeflateThreshold is the payload size above which
	// compression is attempted at all, per §4.F's send algorithm.
	compressDeflateThreshold = 64

	// deflatePrefix is the fixed 2-byte marker prepended to a deflated
	// payload, matching the original implementation's "Prefix_V1" tag.
	deflatePrefix = "V1"
)

// encodeFrame compiles the wire bytes (header + payload) for msg, applying
// the compression decision from §4.F step 1.
func encodeFrame(msg *SocketMessage) ([]byte, error) {
	payload := msg.Payload
	compressed := false

	if len(payload) > compressDeflateThreshold && msg.UseCompression && msg.PeerSupportsCompression {
		if def, ok := tryDeflate(payload); ok && len(def) < len(payload) {
			payload = def
			compressed = true
		}
	}

	if len(payload) > maxPayloadSize {
		return nil, neterr.New(neterr.CodePayloadTooBig, "effective payload exceeds 2^32-1 bytes")
	}

	header := make([]byte, headerSizeV2)
	header[0] = magic
	header[1] = 2
	wireutil.PutUint16(header[2:4], msg.CommandID)
	wireutil.PutUint32(header[4:8], msg.ID)
	wireutil.PutUint32(header[8:12], uint32(len(payload)))

	flags := byte(0)
	if compressed {
		flags |= flagCompressed
	}
	if msg.UseCompression {
		flags |= flagSenderSupports
	}
	if msg.SupportMsgChannel {
		flags |= flagSupportMsgChan
	}
	header[12] = flags
	header[13] = byte(msg.PayloadType)
	wireutil.PutUint16(header[14:16], wireutil.RandomSalt())

	var payloadCRC uint32
	if len(payload) > 0 {
		payloadCRC = crc32.ChecksumIEEE(payload)
	}
	wireutil.PutUint32(header[16:20], payloadCRC)
	wireutil.PutUint32(header[20:24], crc32.ChecksumIEEE(header[0:20]))

	out := make([]byte, 0, len(header)+len(payload))
	out = append(out, header...)
	out = append(out, payload...)
	return out, nil
}

// tryDeflate compresses data with the deflatePrefix marker, reporting
// false if compression itself fails (the caller falls back to raw).
func tryDeflate(data []byte) ([]byte, bool) {
	var buf bytes.Buffer
	buf.WriteString(deflatePrefix)

	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, false
	}
	if _, err := w.Write(data); err != nil {
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

func inflate(data []byte) ([]byte, error) {
	prefix := []byte(deflatePrefix)
	if len(data) < len(prefix) || !bytes.Equal(data[:len(prefix)], prefix) {
		return nil, neterr.New(neterr.CodeInvalidPacket, "missing deflate prefix")
	}
	r := flate.NewReader(bytes.NewReader(data[len(prefix):]))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, neterr.Wrap(neterr.CodeInvalidPacket, "inflate payload", err)
	}
	return out, nil
}

// decodedHeader is the version-agnostic result of parsing the first 20 (v1)
// or 24 (v2) header bytes.
type decodedHeader struct {
	version     int
	commandID   uint16
	id          uint32
	payloadSize uint32
	flags       byte
	payloadType PayloadType
	payloadCRC  uint32 // only meaningful, and only checked, for version 2
}

// decodeHeaderV1 parses a 20-byte legacy header, read-only per the
// REDESIGN FLAGS note that version 1 and version 2 must be two distinct
// decoders: at offset 16 it holds the header CRC (over bytes [0..16)),
// not a payload CRC, a layout version 2 does not share.
func decodeHeaderV1(buf []byte) (decodedHeader, error) {
	if len(buf) < headerSizeV1 {
		return decodedHeader{}, neterr.New(neterr.CodeInvalidPacket, "short version-1 header")
	}
	wantCRC := wireutil.Uint32(buf[16:20])
	if crc32.ChecksumIEEE(buf[0:16]) != wantCRC {
		return decodedHeader{}, neterr.New(neterr.CodeInvalidPacket, "header checksum")
	}
	return decodedHeader{
		version:     1,
		commandID:   wireutil.Uint16(buf[2:4]),
		id:          wireutil.Uint32(buf[4:8]),
		payloadSize: wireutil.Uint32(buf[8:12]),
		flags:       buf[12],
		payloadType: PayloadType(buf[13]),
	}, nil
}

// decodeHeaderV2 parses the full 24-byte header.
func decodeHeaderV2(buf []byte) (decodedHeader, error) {
	if len(buf) < headerSizeV2 {
		return decodedHeader{}, neterr.New(neterr.CodeInvalidPacket, "short version-2 header")
	}
	wantCRC := wireutil.Uint32(buf[20:24])
	if crc32.ChecksumIEEE(buf[0:20]) != wantCRC {
		return decodedHeader{}, neterr.New(neterr.CodeInvalidPacket, "header checksum")
	}
	return decodedHeader{
		version:     2,
		commandID:   wireutil.Uint16(buf[2:4]),
		id:          wireutil.Uint32(buf[4:8]),
		payloadSize: wireutil.Uint32(buf[8:12]),
		flags:       buf[12],
		payloadType: PayloadType(buf[13]),
		payloadCRC:  wireutil.Uint32(buf[16:20]),
	}, nil
}
