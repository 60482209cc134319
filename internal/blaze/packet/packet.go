// Package packet implements the 12-byte Blaze packet header and framing
// over a byte stream, independent of the tagged value payload it carries.
package packet

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Type is the packet's q_type field.
type Type uint8

const (
	TypeRequest Type = iota
	TypeResponse
	TypeNotify
	TypeError
)

// extendedLengthFlag is the high bit of the on-wire q_type byte, set when
// the payload exceeds 16 bits and the header's ext_length byte carries the
// high bits of the total length.
const extendedLengthFlag = 0x80

// headerSize is the fixed Blaze packet header length in bytes:
// length(2) + component(2) + command(2) + error(2) + q_type(1) + id(2) + ext_length(1).
const headerSize = 12

// Header is the fixed 12-byte Blaze packet header, excluding the length
// field which Read/Write derive from (and store into) the body.
type Header struct {
	Component uint16
	Command   uint16
	Error     uint16
	Type      Type
	ID        uint16
}

// Packet is a decoded Blaze packet: header plus its raw tagged-value body.
type Packet struct {
	Header Header
	Body   []byte
}

// Read parses one packet from r.
func Read(r io.Reader) (*Packet, error) {
	var raw [headerSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return nil, fmt.Errorf("packet: reading header: %w", err)
	}

	lengthLow := binary.BigEndian.Uint16(raw[0:2])
	component := binary.BigEndian.Uint16(raw[2:4])
	command := binary.BigEndian.Uint16(raw[4:6])
	errCode := binary.BigEndian.Uint16(raw[6:8])
	qTypeByte := raw[8]
	id := binary.BigEndian.Uint16(raw[9:11])
	extLength := raw[11]

	extended := qTypeByte&extendedLengthFlag != 0
	qType := Type(qTypeByte &^ extendedLengthFlag)

	totalLen := uint32(lengthLow)
	if extended {
		totalLen = uint32(extLength)<<16 | uint32(lengthLow)
	}

	header := Header{
		Component: component,
		Command:   command,
		Error:     errCode,
		Type:      qType,
		ID:        id,
	}

	body := make([]byte, totalLen)
	if totalLen > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, fmt.Errorf("packet: reading body: %w", err)
		}
	}

	return &Packet{Header: header, Body: body}, nil
}

// Write serializes and writes a packet, choosing the extended length form
// when the body exceeds 16 bits.
func Write(w io.Writer, h Header, body []byte) error {
	var raw [headerSize]byte

	length := len(body)
	extended := length > 0xFFFF

	binary.BigEndian.PutUint16(raw[0:2], uint16(length))
	binary.BigEndian.PutUint16(raw[2:4], h.Component)
	binary.BigEndian.PutUint16(raw[4:6], h.Command)
	binary.BigEndian.PutUint16(raw[6:8], h.Error)

	qTypeByte := byte(h.Type)
	binary.BigEndian.PutUint16(raw[9:11], h.ID)
	if extended {
		qTypeByte |= extendedLengthFlag
		raw[11] = byte(length >> 16)
	}
	raw[8] = qTypeByte

	if _, err := w.Write(raw[:]); err != nil {
		return fmt.Errorf("packet: writing header: %w", err)
	}
	if len(body) > 0 {
		if _, err := w.Write(body); err != nil {
			return fmt.Errorf("packet: writing body: %w", err)
		}
	}
	return nil
}
