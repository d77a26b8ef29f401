// Package message implements the framed message protocol (component F):
// SocketMessage plus SendMessage/WaitMessage layered over a tcpsock
// endpoint placed into "message mode". The wire format is the 24-byte
// header described in §4.F of the networking core: magic 'V', a version
// byte, and, depending on that version, either a 20-byte legacy header
// (read-only, never generated) or the full 24-byte version-2 header with
// a payload CRC.
package message

import (
	"bytes"
	"encoding/gob"

	"github.com/DNS-OARC/gonet/neterr"
)

// PayloadType tags the in-memory representation of a message's payload.
type PayloadType uint8

const (
	PayloadNone PayloadType = iota
	PayloadString
	PayloadAssocArray
	PayloadByteArray
)

// SocketMessage is one application message: header fields plus an owned
// payload. The zero value is an empty, uncompressed, protocol-version-2
// message with no payload.
type SocketMessage struct {
	CommandID uint16
	ID        uint32
	Payload   []byte

	PayloadType PayloadType

	// UseCompression is this side's wish to compress outgoing payloads
	// over 64 bytes; it also doubles as the "sender supports compression"
	// capability bit the protocol advertises to the peer, matching the
	// original implementation’s single flag for both purposes.
	UseCompression bool

	// SupportMsgChannel advertises this side's ability to multiplex a
	// side channel over the connection. gonet does not implement a
	// message channel itself; the bit exists so one gonet peer can
	// interoperate with an original-implementation peer that does.
	SupportMsgChannel bool

	// PeerSupportsCompression is set by WaitMessage from the received
	// header's bit1, and is what Send consults (together with
	// UseCompression) when this same SocketMessage is echoed back.
	PeerSupportsCompression bool

	// ProtocolVersion is set by WaitMessage to the version actually
	// observed on the wire (1 or 2). Send always generates version 2;
	// this field is purely informational on an outgoing message.
	ProtocolVersion int
}

// String returns the payload interpreted as a string, or an error if the
// payload was not tagged PayloadString.
func (m *SocketMessage) String() (string, error) {
	if m.Payload == nil {
		return "", neterr.New(neterr.CodeNoDataAvailable, "no payload")
	}
	if m.PayloadType != PayloadString {
		return "", neterr.New(neterr.CodeDataInOtherFormat, "payload is not a string")
	}
	return string(m.Payload), nil
}

// SetString sets the payload to s, tagged PayloadString.
func (m *SocketMessage) SetString(s string) {
	m.Payload = []byte(s)
	m.PayloadType = PayloadString
}

// ByteArray returns the payload as-is, or an error if it was not tagged
// PayloadByteArray.
func (m *SocketMessage) ByteArray() ([]byte, error) {
	if m.Payload == nil {
		return nil, neterr.New(neterr.CodeNoDataAvailable, "no payload")
	}
	if m.PayloadType != PayloadByteArray {
		return nil, neterr.New(neterr.CodeDataInOtherFormat, "payload is not a byte array")
	}
	return m.Payload, nil
}

// SetByteArray sets the payload to b, tagged PayloadByteArray. b is
// copied, since SocketMessage owns its payload.
func (m *SocketMessage) SetByteArray(b []byte) {
	m.Payload = append([]byte(nil), b...)
	m.PayloadType = PayloadByteArray
}

// AssocArray decodes the payload as a string-keyed map, or returns an
// error if it was not tagged PayloadAssocArray.
func (m *SocketMessage) AssocArray() (map[string]string, error) {
	if m.Payload == nil {
		return nil, neterr.New(neterr.CodeNoDataAvailable, "no payload")
	}
	if m.PayloadType != PayloadAssocArray {
		return nil, neterr.New(neterr.CodeDataInOtherFormat, "payload is not an assoc array")
	}
	var out map[string]string
	if err := gob.NewDecoder(bytes.NewReader(m.Payload)).Decode(&out); err != nil {
		return nil, neterr.Wrap(neterr.CodeInvalidPacket, "assoc array payload", err)
	}
	return out, nil
}

// SetAssocArray sets the payload to the gob encoding of kv, tagged
// PayloadAssocArray.
func (m *SocketMessage) SetAssocArray(kv map[string]string) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(kv); err != nil {
		return neterr.Wrap(neterr.CodeIllegalArgument, "assoc array payload", err)
	}
	m.Payload = buf.Bytes()
	m.PayloadType = PayloadAssocArray
	return nil
}
