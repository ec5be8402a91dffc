package frame

import (
	"bytes"
	"testing"
	"testing/quick"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestFrameRoundTrip(t *testing.T) {
	f := func(endpoint, typ uint8, tag uint16, payload []byte) bool {
		if len(payload) > MaxPayload {
			payload = payload[:MaxPayload]
		}
		var buf bytes.Buffer
		if err := WriteFrame(&buf, endpoint, typ, tag, payload); err != nil {
			return false
		}

		hdr, got, err := ReadFrame(&buf, true)
		if err != nil {
			return false
		}
		if hdr.Endpoint != endpoint || hdr.Type != typ || hdr.Tag != tag {
			return false
		}
		// payload is zero-padded to a 4-byte boundary; compare the
		// original bytes prefix and confirm the rest is zero.
		if len(got) < len(payload) {
			return false
		}
		if !bytes.Equal(got[:len(payload)], payload) {
			return false
		}
		for _, b := range got[len(payload):] {
			if b != 0 {
				return false
			}
		}
		return true
	}

	if err := quick.Check(f, &quick.Config{MaxLen: 1024}); err != nil {
		t.Fatal(err)
	}
}

func TestFramePadding(t *testing.T) {
	cases := []struct{ n, want int }{
		{0, 0}, {1, 4}, {2, 4}, {3, 4}, {4, 4}, {5, 8}, {260096, 260096}, {260095, 260096},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ceilToUnit(c.n), "ceilToUnit(%d)", c.n)
	}
}

func TestFrameOversizePayload(t *testing.T) {
	var buf bytes.Buffer
	payload := make([]byte, MaxPayload+4)
	err := WriteFrame(&buf, 1, 1, 1, payload)
	assert.ErrorIs(t, err, ErrOversizePayload)
}

func TestFrameShortRead(t *testing.T) {
	_, _, err := ReadFrame(bytes.NewReader([]byte{1, 2, 3}), true)
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestFrameStrictRejectsNonZeroReserved(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, WriteFrame(&buf, 1, 1, 1, nil))
	raw := buf.Bytes()
	raw[6] = 0xFF // corrupt reserved bytes
	_, _, err := ReadFrame(bytes.NewReader(raw), true)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestTagAllocatorSkipsZero(t *testing.T) {
	var a TagAllocator
	seen := map[uint16]bool{}
	for i := 0; i < 1<<17; i++ {
		tag := a.Next()
		assert.NotZero(t, tag)
		seen[tag] = true
	}
	assert.Len(t, seen, 1<<16-1)
}

func TestTagEcho(t *testing.T) {
	// A response frame must echo the request's tag; an unsolicited/
	// broadcast frame always carries tag 0.
	var buf bytes.Buffer
	const reqTag = uint16(42)
	assert.NoError(t, WriteFrame(&buf, 1, 2, reqTag, []byte("req")))
	hdr, _, err := ReadFrame(&buf, true)
	assert.NoError(t, err)

	buf.Reset()
	assert.NoError(t, WriteFrame(&buf, 1, 3, hdr.Tag, []byte("resp")))
	respHdr, _, err := ReadFrame(&buf, true)
	assert.NoError(t, err)
	assert.Equal(t, reqTag, respHdr.Tag)

	buf.Reset()
	assert.NoError(t, WriteFrame(&buf, 1, 4, 0, []byte("broadcast")))
	bcastHdr, _, err := ReadFrame(&buf, true)
	assert.NoError(t, err)
	assert.Zero(t, bcastHdr.Tag)
}

func TestCodecRoundTrip(t *testing.T) {
	enc := NewEncoder()
	id := uuid.New()
	enc.String("hello")
	enc.U32(7)
	enc.F64(3.25)
	enc.UUID(id)
	enc.OptionalRawBytes([]byte("present"), true)
	enc.OptionalRawBytes(nil, false)
	enc.RawBytes([]byte{1, 2, 3})

	dec := NewDecoder(enc.Bytes())
	s, err := dec.String()
	assert.NoError(t, err)
	assert.Equal(t, "hello", s)

	u, err := dec.U32()
	assert.NoError(t, err)
	assert.Equal(t, uint32(7), u)

	fl, err := dec.F64()
	assert.NoError(t, err)
	assert.Equal(t, 3.25, fl)

	gotID, err := dec.UUID()
	assert.NoError(t, err)
	assert.Equal(t, id, gotID)

	b, present, err := dec.OptionalRawBytes()
	assert.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, []byte("present"), b)

	b, present, err = dec.OptionalRawBytes()
	assert.NoError(t, err)
	assert.False(t, present)
	assert.Nil(t, b)

	raw, err := dec.RawBytes()
	assert.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, raw)

	assert.Zero(t, dec.Remaining())
}

func TestCodecTruncated(t *testing.T) {
	dec := NewDecoder([]byte{1, 2})
	_, err := dec.U32()
	assert.ErrorIs(t, err, ErrTruncated)
}
