package codec

import (
	"bytes"
	"errors"
	"testing"

	"icc.tech/procbus-agent/internal/core"
)

func TestLengthForms(t *testing.T) {
	cases := []struct {
		n    int
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7F}},
		{128, []byte{0x81, 0x80}},
		{255, []byte{0x81, 0xFF}},
		{256, []byte{0x82, 0x01, 0x00}},
		{65535, []byte{0x82, 0xFF, 0xFF}},
		{65536, []byte{0x83, 0x01, 0x00, 0x00}},
	}
	for _, c := range cases {
		w := newWriter(1 + len(c.want) + c.n)
		writeTagLen(w, 0x30, c.n)
		if !bytes.Equal(w.buf[1:], c.want) {
			t.Errorf("length %d encoded as % x, want % x", c.n, w.buf[1:], c.want)
		}
		if got := sizeLength(c.n); got != len(c.want) {
			t.Errorf("sizeLength(%d) = %d, want %d", c.n, got, len(c.want))
		}
		// Round-trip through the reader with the content present.
		w.write(make([]byte, c.n))
		tag, n, err := readTagLen(newReader(w.buf))
		if err != nil {
			t.Errorf("length %d: read failed: %v", c.n, err)
			continue
		}
		if tag != 0x30 || n != c.n {
			t.Errorf("length %d round-tripped as tag 0x%02x len %d", c.n, tag, n)
		}
	}
}

func TestReadTagLenRejectsBadForms(t *testing.T) {
	// Indefinite form.
	if _, _, err := readTagLen(newReader([]byte{0x30, 0x80})); !errors.Is(err, core.ErrInvalidLength) {
		t.Errorf("indefinite form: got %v", err)
	}
	// Length form beyond three octets.
	if _, _, err := readTagLen(newReader([]byte{0x30, 0x84, 1, 0, 0, 0})); !errors.Is(err, core.ErrInvalidLength) {
		t.Errorf("four-octet form: got %v", err)
	}
	// Declared length exceeding the buffer.
	if _, _, err := readTagLen(newReader([]byte{0x30, 0x05, 1, 2})); !errors.Is(err, core.ErrInvalidLength) {
		t.Errorf("overlong declaration: got %v", err)
	}
}

func TestUnsignedMinimalForm(t *testing.T) {
	cases := []struct {
		v    uint64
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{0x7F, []byte{0x7F}},
		{0x80, []byte{0x00, 0x80}}, // leading zero keeps it non-negative
		{0xFF, []byte{0x00, 0xFF}},
		{0x100, []byte{0x01, 0x00}},
		{0x8000, []byte{0x00, 0x80, 0x00}},
		{1 << 40, []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00}},
		{^uint64(0), []byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
	}
	for _, c := range cases {
		w := newWriter(2 + len(c.want))
		writeUnsignedField(w, 0x86, c.v)
		if !bytes.Equal(w.buf[2:], c.want) {
			t.Errorf("%d encoded as % x, want % x", c.v, w.buf[2:], c.want)
		}
		got, err := readUnsigned(c.want)
		if err != nil || got != c.v {
			t.Errorf("%x decoded as %d (%v)", c.want, got, err)
		}
	}
	if _, err := readUnsigned(nil); !errors.Is(err, core.ErrInvalidLength) {
		t.Errorf("empty unsigned: got %v", err)
	}
	if _, err := readUnsigned(bytes.Repeat([]byte{1}, 9)); !errors.Is(err, core.ErrInvalidLength) {
		t.Errorf("nine-octet unsigned with non-zero lead: got %v", err)
	}
}

func TestSignedMinimalForm(t *testing.T) {
	cases := []struct {
		v    int64
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{-1, []byte{0xFF}},
		{127, []byte{0x7F}},
		{128, []byte{0x00, 0x80}},
		{-128, []byte{0x80}},
		{-129, []byte{0xFF, 0x7F}},
		{1234, []byte{0x04, 0xD2}},
		{2147483647, []byte{0x7F, 0xFF, 0xFF, 0xFF}},
		{2147483648, []byte{0x00, 0x80, 0x00, 0x00, 0x00}},
		{-2147483648, []byte{0x80, 0x00, 0x00, 0x00}},
	}
	for _, c := range cases {
		w := newWriter(2 + len(c.want))
		writeSignedField(w, 0x85, c.v)
		if !bytes.Equal(w.buf[2:], c.want) {
			t.Errorf("%d encoded as % x, want % x", c.v, w.buf[2:], c.want)
		}
		got, err := readSigned(c.want)
		if err != nil || got != c.v {
			t.Errorf("%x decoded as %d (%v)", c.want, got, err)
		}
	}
}

func TestReadUnsigned32Overflow(t *testing.T) {
	_, err := readUnsigned32([]byte{0x01, 0x00, 0x00, 0x00, 0x00})
	if !errors.Is(err, core.ErrValueOutOfRange) {
		t.Errorf("expected ErrValueOutOfRange, got %v", err)
	}
}
