package message

import (
	"hash/crc32"
	"time"

	"github.com/DNS-OARC/gonet/neterr"
	"github.com/DNS-OARC/gonet/tcpsock"
	"github.com/DNS-OARC/gonet/watch"
)

// conn is the subset of *tcpsock.Endpoint the framed protocol needs,
// letting tests substitute a fake transport.
type conn interface {
	Write([]byte) (int, error)
	ReadLoop([]byte, time.Duration, watch.Watch) (int, error)
}

var _ conn = (*tcpsock.Endpoint)(nil)

// SendMessage compiles msg's wire frame and writes it to c in a single
// write sequence.
func SendMessage(c conn, msg *SocketMessage) error {
	frame, err := encodeFrame(msg)
	if err != nil {
		return err
	}
	_, err = c.Write(frame)
	return err
}

// WaitMessage blocks until a complete frame arrives on c, timeout elapses,
// or w requests a stop. A timeout or cancellation is reported as
// (nil, false, nil) — not an error — per §4.F's "user-visible failure
// behavior"; any other failure (bad magic, CRC mismatch, I/O error) is
// returned as the error.
func WaitMessage(c conn, timeout time.Duration, w watch.Watch) (*SocketMessage, bool, error) {
	w = watch.Of(w)
	deadline := time.Now().Add(timeout)

	header := make([]byte, headerSizeV2)
	n, err := c.ReadLoop(header[:headerSizeV1], remaining(timeout, deadline), w)
	if err != nil {
		if isSoftStop(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	_ = n

	if header[0] != magic {
		return nil, false, neterr.New(neterr.CodeInvalidProtocolVersion, "missing frame magic")
	}

	var hdr decodedHeader
	switch header[1] {
	case 1:
		hdr, err = decodeHeaderV1(header[:headerSizeV1])
	case 2:
		if _, err = c.ReadLoop(header[headerSizeV1:headerSizeV2], remaining(timeout, deadline), w); err != nil {
			if isSoftStop(err) {
				return nil, false, nil
			}
			return nil, false, err
		}
		hdr, err = decodeHeaderV2(header[:headerSizeV2])
	default:
		return nil, false, neterr.New(neterr.CodeInvalidProtocolVersion, "unsupported protocol version")
	}
	if err != nil {
		return nil, false, err
	}

	var payload []byte
	if hdr.payloadSize > 0 {
		payload = make([]byte, hdr.payloadSize)
		if _, err := c.ReadLoop(payload, remaining(timeout, deadline), w); err != nil {
			if isSoftStop(err) {
				return nil, false, nil
			}
			return nil, false, err
		}
		if hdr.version == 2 {
			if crc32.ChecksumIEEE(payload) != hdr.payloadCRC {
				return nil, false, neterr.New(neterr.CodeInvalidPacket, "CRC checksum of payload")
			}
		}
	}

	if hdr.flags&flagCompressed != 0 {
		decompressed, err := inflate(payload)
		if err != nil {
			return nil, false, err
		}
		payload = decompressed
	}

	msg := &SocketMessage{
		CommandID:               hdr.commandID,
		ID:                      hdr.id,
		Payload:                 payload,
		PayloadType:             hdr.payloadType,
		PeerSupportsCompression: hdr.flags&flagSenderSupports != 0,
		SupportMsgChannel:       hdr.flags&flagSupportMsgChan != 0,
		ProtocolVersion:         hdr.version,
	}
	return msg, true, nil
}

func remaining(total time.Duration, deadline time.Time) time.Duration {
	if total <= 0 {
		return 0
	}
	if d := time.Until(deadline); d > 0 {
		return d
	}
	return time.Nanosecond // ReadLoop treats <=0 as "no timeout"; force an immediate expiry instead.
}

func isSoftStop(err error) bool {
	code := neterr.CodeOf(err)
	return code == neterr.CodeTimeout || code == neterr.CodeOperationAborted
}
