package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"icc.tech/procbus-agent/internal/core"
)

// sizeLength returns the number of octets the BER length field for a
// content of n octets occupies (short form, or long form 0x81..0x83).
func sizeLength(n int) int {
	switch {
	case n < 0x80:
		return 1
	case n <= 0xFF:
		return 2
	case n <= 0xFFFF:
		return 3
	default:
		return 4
	}
}

// fieldSize is the full TLV size of a field with n content octets.
func fieldSize(n int) int {
	return 1 + sizeLength(n) + n
}

func writeTagLen(w *writer, tag byte, n int) {
	w.writeByte(tag)
	switch {
	case n < 0x80:
		w.writeByte(byte(n))
	case n <= 0xFF:
		w.writeByte(0x81)
		w.writeByte(byte(n))
	case n <= 0xFFFF:
		w.writeByte(0x82)
		w.writeUint16(uint16(n))
	default:
		w.writeByte(0x83)
		w.writeByte(byte(n >> 16))
		w.writeUint16(uint16(n))
	}
}

// readTagLen reads one tag and its length. The declared length is
// validated against the octets actually remaining in the buffer.
func readTagLen(r *reader) (byte, int, error) {
	tag, err := r.readByte()
	if err != nil {
		return 0, 0, err
	}
	first, err := r.readByte()
	if err != nil {
		return 0, 0, err
	}
	var n int
	switch {
	case first < 0x80:
		n = int(first)
	case first == 0x81:
		b, err := r.readByte()
		if err != nil {
			return 0, 0, err
		}
		n = int(b)
	case first == 0x82:
		v, err := r.readUint16()
		if err != nil {
			return 0, 0, err
		}
		n = int(v)
	case first == 0x83:
		hi, err := r.readByte()
		if err != nil {
			return 0, 0, err
		}
		lo, err := r.readUint16()
		if err != nil {
			return 0, 0, err
		}
		n = int(hi)<<16 | int(lo)
	default:
		// Indefinite form and lengths beyond three octets are not
		// used by 61850 APDUs.
		return 0, 0, fmt.Errorf("%w: length form 0x%02x", core.ErrInvalidLength, first)
	}
	if n > r.remaining() {
		return 0, 0, fmt.Errorf("%w: declared %d octets, %d remain", core.ErrInvalidLength, n, r.remaining())
	}
	return tag, n, nil
}

// expectBytes reads the next TLV, checks its tag and returns the
// content octets.
func expectBytes(r *reader, want byte) ([]byte, error) {
	tag, n, err := readTagLen(r)
	if err != nil {
		return nil, err
	}
	if tag != want {
		return nil, fmt.Errorf("%w: got 0x%02x, want 0x%02x", core.ErrUnexpectedTag, tag, want)
	}
	return r.bytes(n)
}

// expectField is expectBytes returning a sub-reader, for constructed
// fields that are walked TLV by TLV.
func expectField(r *reader, want byte) (*reader, error) {
	b, err := expectBytes(r, want)
	if err != nil {
		return nil, err
	}
	return newReader(b), nil
}

// ── Unsigned integers (minimal form, leading 0x00 when MSB set) ──

func unsignedSize(v uint64) int {
	n := 1
	for v > 0xFF {
		v >>= 8
		n++
	}
	if v&0x80 != 0 {
		n++
	}
	return n
}

func writeUnsignedField(w *writer, tag byte, v uint64) {
	n := unsignedSize(v)
	writeTagLen(w, tag, n)
	for i := n - 1; i >= 0; i-- {
		w.writeByte(byte(v >> (8 * i)))
	}
}

func readUnsigned(b []byte) (uint64, error) {
	if len(b) == 0 || len(b) > 9 || (len(b) == 9 && b[0] != 0) {
		return 0, fmt.Errorf("%w: unsigned of %d octets", core.ErrInvalidLength, len(b))
	}
	var v uint64
	for _, o := range b {
		v = v<<8 | uint64(o)
	}
	return v, nil
}

// readUnsigned32 narrows to the 32-bit fields of the GOOSE APDU.
func readUnsigned32(b []byte) (uint32, error) {
	v, err := readUnsigned(b)
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d exceeds 32 bits", core.ErrValueOutOfRange, v)
	}
	return uint32(v), nil
}

// ── Signed integers (minimal two's-complement) ──

func signedSize(v int64) int {
	n := 1
	for v > 0x7F || v < -0x80 {
		v >>= 8
		n++
	}
	return n
}

func writeSignedField(w *writer, tag byte, v int64) {
	n := signedSize(v)
	writeTagLen(w, tag, n)
	for i := n - 1; i >= 0; i-- {
		w.writeByte(byte(v >> (8 * i)))
	}
}

func readSigned(b []byte) (int64, error) {
	if len(b) == 0 || len(b) > 8 {
		return 0, fmt.Errorf("%w: signed of %d octets", core.ErrInvalidLength, len(b))
	}
	v := int64(int8(b[0])) // sign-extend from the first octet
	for _, o := range b[1:] {
		v = v<<8 | int64(o)
	}
	return v, nil
}

// ── Booleans ──

func writeBoolField(w *writer, tag byte, v bool) {
	writeTagLen(w, tag, 1)
	if v {
		w.writeByte(0xFF)
	} else {
		w.writeByte(0x00)
	}
}

func readBool(b []byte) (bool, error) {
	if len(b) != 1 {
		return false, fmt.Errorf("%w: boolean of %d octets", core.ErrInvalidBool, len(b))
	}
	return b[0] != 0, nil
}

// ── Strings and octet strings ──

func writeBytesField(w *writer, tag byte, b []byte) {
	writeTagLen(w, tag, len(b))
	w.write(b)
}

func writeStringField(w *writer, tag byte, s string) {
	writeTagLen(w, tag, len(s))
	w.write([]byte(s))
}

// ── Floating point (IEEE 754 with exponent-width descriptor octet) ──

const (
	floatDescriptor32 = 0x08
	floatDescriptor64 = 0x11
)

func writeFloat32Field(w *writer, tag byte, v float32) {
	writeTagLen(w, tag, 5)
	w.writeByte(floatDescriptor32)
	w.writeUint32(math.Float32bits(v))
}

func writeFloat64Field(w *writer, tag byte, v float64) {
	writeTagLen(w, tag, 9)
	w.writeByte(floatDescriptor64)
	bits := math.Float64bits(v)
	w.writeUint32(uint32(bits >> 32))
	w.writeUint32(uint32(bits))
}

// ── UtcTime (8 octets: seconds, 24-bit fraction, quality) ──

func writeTimestampField(w *writer, tag byte, t core.Timestamp) {
	writeTagLen(w, tag, 8)
	w.writeUint32(t.Seconds)
	w.writeByte(byte(t.Fraction >> 16))
	w.writeByte(byte(t.Fraction >> 8))
	w.writeByte(byte(t.Fraction))
	w.writeByte(t.Quality.Byte())
}

func readTimestamp(b []byte) (core.Timestamp, error) {
	if len(b) != 8 {
		return core.Timestamp{}, fmt.Errorf("%w: UtcTime of %d octets", core.ErrInvalidLength, len(b))
	}
	return core.Timestamp{
		Seconds:  binary.BigEndian.Uint32(b[0:4]),
		Fraction: uint32(b[4])<<16 | uint32(b[5])<<8 | uint32(b[6]),
		Quality:  core.TimeQualityFromByte(b[7]),
	}, nil
}
