package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"

	"github.com/google/uuid"
)

// ErrTruncated is returned by Decoder methods when the buffer runs out
// before a value can be fully read.
var ErrTruncated = errors.New("frame: truncated payload")

// Encoder builds a frame payload using the protocol's portable binary
// encoding: fixed-size scalars little-endian; strings as a u32 length then
// UTF-8 bytes; sequences as a u64 length then elements; optionals as a u8
// tag (0 absent, 1 present) then the conditional value; variants as a u8
// discriminant then the payload. This mirrors the field-by-field
// binary.Write style the teacher uses in its message hashing code, rather
// than a reflection-based marshaler.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder returns a ready-to-use Encoder.
func NewEncoder() *Encoder { return &Encoder{} }

// Bytes returns the encoded payload built so far.
func (e *Encoder) Bytes() []byte { return e.buf.Bytes() }

func (e *Encoder) U8(v uint8)   { e.buf.WriteByte(v) }
func (e *Encoder) Bool(v bool) {
	if v {
		e.U8(1)
	} else {
		e.U8(0)
	}
}

func (e *Encoder) U16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) U32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) U64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

func (e *Encoder) I32(v int32) { e.U32(uint32(v)) }
func (e *Encoder) I64(v int64) { e.U64(uint64(v)) }

func (e *Encoder) F64(v float64) {
	e.U64(uint64FromFloat(v))
}

// FixedBytes writes b verbatim with no length prefix (used for the
// 32-byte authentication challenge).
func (e *Encoder) FixedBytes(b []byte) { e.buf.Write(b) }

func (e *Encoder) String(s string) {
	e.U32(uint32(len(s)))
	e.buf.WriteString(s)
}

// RawBytes writes a length-prefixed byte string (used for opaque
// values such as player-info/world-info data and chunk slice payloads).
func (e *Encoder) RawBytes(b []byte) {
	e.U64(uint64(len(b)))
	e.buf.Write(b)
}

func (e *Encoder) UUID(id uuid.UUID) {
	e.buf.Write(id[:])
}

// OptionalRawBytes encodes an optional byte string: the u8 presence tag,
// then the length-prefixed bytes if present.
func (e *Encoder) OptionalRawBytes(b []byte, present bool) {
	e.Bool(present)
	if present {
		e.RawBytes(b)
	}
}

// Decoder reads values out of a payload buffer in the same order an Encoder
// wrote them, failing with ErrTruncated rather than panicking on short
// input — deserialization errors become ErrMalformed at the handler
// boundary instead of the thrown-exception discipline of the original
// source (see the Design Notes on "exceptions for control flow").
type Decoder struct {
	b   []byte
	off int
}

// NewDecoder wraps payload for sequential decoding.
func NewDecoder(payload []byte) *Decoder { return &Decoder{b: payload} }

// Remaining reports how many bytes are left to decode.
func (d *Decoder) Remaining() int { return len(d.b) - d.off }

func (d *Decoder) need(n int) error {
	if d.Remaining() < n {
		return ErrTruncated
	}
	return nil
}

func (d *Decoder) U8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.b[d.off]
	d.off++
	return v, nil
}

func (d *Decoder) Bool() (bool, error) {
	v, err := d.U8()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func (d *Decoder) U16() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(d.b[d.off:])
	d.off += 2
	return v, nil
}

func (d *Decoder) U32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(d.b[d.off:])
	d.off += 4
	return v, nil
}

func (d *Decoder) U64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(d.b[d.off:])
	d.off += 8
	return v, nil
}

func (d *Decoder) I32() (int32, error) {
	v, err := d.U32()
	return int32(v), err
}

func (d *Decoder) I64() (int64, error) {
	v, err := d.U64()
	return int64(v), err
}

func (d *Decoder) F64() (float64, error) {
	v, err := d.U64()
	if err != nil {
		return 0, err
	}
	return floatFromUint64(v), nil
}

func (d *Decoder) FixedBytes(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	v := make([]byte, n)
	copy(v, d.b[d.off:d.off+n])
	d.off += n
	return v, nil
}

func (d *Decoder) String() (string, error) {
	n, err := d.U32()
	if err != nil {
		return "", err
	}
	b, err := d.FixedBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *Decoder) RawBytes() ([]byte, error) {
	n, err := d.U64()
	if err != nil {
		return nil, err
	}
	return d.FixedBytes(int(n))
}

func (d *Decoder) UUID() (uuid.UUID, error) {
	b, err := d.FixedBytes(16)
	if err != nil {
		return uuid.UUID{}, err
	}
	var id uuid.UUID
	copy(id[:], b)
	return id, nil
}

func (d *Decoder) OptionalRawBytes() ([]byte, bool, error) {
	present, err := d.Bool()
	if err != nil {
		return nil, false, err
	}
	if !present {
		return nil, false, nil
	}
	b, err := d.RawBytes()
	return b, true, err
}

// uint64FromFloat and floatFromUint64 round-trip a float64 through its IEEE
// 754 bit pattern, matching how a systems-language cereal archive would
// serialize a double verbatim rather than as text.
func uint64FromFloat(f float64) uint64  { return math.Float64bits(f) }
func floatFromUint64(u uint64) float64 { return math.Float64frombits(u) }
