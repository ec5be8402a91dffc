// Package frame implements the fixed-header, padded-payload wire frame
// described by the cubeland protocol, and the portable binary codec used to
// encode/decode frame payloads.
//
// Frame layout (8-byte header, big-endian multi-byte fields):
//
//	offset 0: endpoint   (1 byte)
//	offset 1: type       (1 byte)
//	offset 2: tag        (2 bytes, big-endian)
//	offset 4: length     (2 bytes, big-endian, in 4-byte units)
//	offset 6: reserved   (2 bytes, must be zero in strict mode)
//	offset 8: payload, zero-padded to a 4-byte boundary
package frame

import (
	"encoding/binary"
	"errors"
	"io"
)

const (
	// HeaderSize is the fixed size of a frame header in bytes.
	HeaderSize = 8

	// MaxPayload is the maximum payload size in bytes (256 KiB).
	MaxPayload = 256 * 1024

	// lengthUnit is the unit the header's length field counts in.
	lengthUnit = 4
)

// Frame errors. ErrShortRead, ErrOversizePayload and ErrMalformed are
// returned by ReadFrame/WriteFrame and map to the Malformed / TLSFatal error
// kinds; callers close the session on any of them. ErrPayloadNotPadded is
// not returned by either function.
var (
	ErrShortRead        = errors.New("frame: short read before a complete frame")
	ErrOversizePayload  = errors.New("frame: payload exceeds 256 KiB")
	ErrMalformed        = errors.New("frame: reserved header bytes are non-zero")
	ErrPayloadNotPadded = errors.New("frame: encoded payload length is not a multiple of 4")
)

// Header is the decoded 8-byte frame header.
type Header struct {
	Endpoint uint8
	Type     uint8
	Tag      uint16
	// Length is the payload length in 4-byte units, as carried on the wire.
	Length uint16
}

// PayloadLen returns the padded payload length in bytes.
func (h Header) PayloadLen() int { return int(h.Length) * lengthUnit }

// ReadFrame reads one frame from r: the 8-byte header, then
// Length*4 payload bytes. strict controls whether non-zero reserved bytes
// are rejected.
func ReadFrame(r io.Reader, strict bool) (Header, []byte, error) {
	var hdrBuf [HeaderSize]byte
	if _, err := io.ReadFull(r, hdrBuf[:]); err != nil {
		return Header{}, nil, ErrShortRead
	}

	reserved := binary.BigEndian.Uint16(hdrBuf[6:8])
	if strict && reserved != 0 {
		return Header{}, nil, ErrMalformed
	}

	hdr := Header{
		Endpoint: hdrBuf[0],
		Type:     hdrBuf[1],
		Tag:      binary.BigEndian.Uint16(hdrBuf[2:4]),
		Length:   binary.BigEndian.Uint16(hdrBuf[4:6]),
	}

	n := hdr.PayloadLen()
	if n > MaxPayload {
		return Header{}, nil, ErrOversizePayload
	}

	payload := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return Header{}, nil, ErrShortRead
		}
	}

	return hdr, payload, nil
}

// WriteFrame encodes endpoint/type/tag/payload into a single contiguous
// buffer and issues one Write call, so TLS record framing is never split
// mid-header by an interleaved write from another goroutine (the caller is
// still responsible for ensuring only one goroutine ever calls WriteFrame on
// a given connection — see session.Session).
func WriteFrame(w io.Writer, endpoint, typ uint8, tag uint16, payload []byte) error {
	if len(payload) > MaxPayload {
		return ErrOversizePayload
	}

	padded := ceilToUnit(len(payload))
	units := padded / lengthUnit

	buf := make([]byte, HeaderSize+padded)
	buf[0] = endpoint
	buf[1] = typ
	binary.BigEndian.PutUint16(buf[2:4], tag)
	binary.BigEndian.PutUint16(buf[4:6], uint16(units))
	// buf[6:8] reserved, left zero
	copy(buf[HeaderSize:], payload)

	_, err := w.Write(buf)
	return err
}

// ceilToUnit rounds n up to the next multiple of lengthUnit (4), matching
// the source's documented integer-ceiling padding: ⌈len/4⌉ * 4.
func ceilToUnit(n int) int {
	if n%lengthUnit == 0 {
		return n
	}
	return n + (lengthUnit - n%lengthUnit)
}

// TagAllocator hands out the 16-bit request tags a session uses to
// correlate responses. It increments on every call, wraps, and skips zero
// (zero is reserved for unsolicited/broadcast frames). Not safe for
// concurrent use: it is owned by a session's single writer goroutine, the
// same way the teacher's TCPPeer serializes all writes through one
// goroutine.
type TagAllocator struct {
	next uint16
}

// Next returns the next tag, wrapping and skipping 0.
func (a *TagAllocator) Next() uint16 {
	a.next++
	if a.next == 0 {
		a.next = 1
	}
	return a.next
}
