// Package codec implements the IEC 61850-8-1 GOOSE and 61850-9-2 LE
// sampled-values wire formats over raw Ethernet frames. All functions
// are pure and reentrant; decoding never trusts declared lengths and
// never reads past the supplied buffer.
package codec

import (
	"encoding/binary"

	"icc.tech/procbus-agent/internal/core"
)

// reader is a bounds-checked big-endian cursor over an input buffer.
type reader struct {
	buf []byte
	pos int
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func (r *reader) remaining() int {
	return len(r.buf) - r.pos
}

// sub returns a reader over the next n octets and advances past them.
func (r *reader) sub(n int) (*reader, error) {
	b, err := r.bytes(n)
	if err != nil {
		return nil, err
	}
	return newReader(b), nil
}

func (r *reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, core.ErrOutOfBounds
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) readByte() (byte, error) {
	if r.remaining() < 1 {
		return 0, core.ErrOutOfBounds
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// peek returns the next octet without advancing; ok is false at the
// end of the buffer.
func (r *reader) peek() (byte, bool) {
	if r.remaining() < 1 {
		return 0, false
	}
	return r.buf[r.pos], true
}

func (r *reader) readUint16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) readUint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// writer appends big-endian values to a pre-sized buffer. Encoders
// compute exact sizes up front so the single allocation in newWriter
// is the only one made per frame.
type writer struct {
	buf []byte
}

func newWriter(size int) *writer {
	return &writer{buf: make([]byte, 0, size)}
}

func (w *writer) writeByte(b byte) {
	w.buf = append(w.buf, b)
}

func (w *writer) write(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *writer) writeUint16(v uint16) {
	w.buf = binary.BigEndian.AppendUint16(w.buf, v)
}

func (w *writer) writeUint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}
