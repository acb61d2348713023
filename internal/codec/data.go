package codec

import (
	"fmt"
	"math"

	"icc.tech/procbus-agent/internal/core"
)

// Data element tags inside allData.
const (
	tagDataBool      = 0x83
	tagDataBitString = 0x84
	tagDataInt       = 0x85
	tagDataUint      = 0x86
	tagDataFloat     = 0x87
	tagDataOctets    = 0x89
	tagDataVisible   = 0x8A
	tagDataMms       = 0x90
	tagDataUtcTime   = 0x91
	tagDataArray     = 0xA1
	tagDataStruct    = 0xA2
)

// dataContentSize returns the content octet count of one data element.
func dataContentSize(d core.Data) (int, error) {
	switch v := d.(type) {
	case core.Boolean:
		return 1, nil
	case core.BitString:
		if v.Padding > 7 {
			return 0, fmt.Errorf("%w: bit-string padding %d", core.ErrValueOutOfRange, v.Padding)
		}
		return 1 + len(v.Bits), nil
	case core.Integer:
		return signedSize(int64(v)), nil
	case core.Unsigned:
		return unsignedSize(uint64(v)), nil
	case core.Float32:
		return 5, nil
	case core.Float64:
		return 9, nil
	case core.OctetString:
		return len(v), nil
	case core.VisibleString:
		return len(v), nil
	case core.MmsString:
		return len(v), nil
	case core.UTCTime:
		return 8, nil
	case core.Array:
		return dataSeqSize([]core.Data(v))
	case core.Structure:
		return dataSeqSize([]core.Data(v))
	default:
		return 0, fmt.Errorf("%w: data element %T", core.ErrUnexpectedTag, d)
	}
}

// dataSize is the full TLV size of one element.
func dataSize(d core.Data) (int, error) {
	n, err := dataContentSize(d)
	if err != nil {
		return 0, err
	}
	return fieldSize(n), nil
}

// dataSeqSize sums the TLV sizes of a sequence of elements.
func dataSeqSize(items []core.Data) (int, error) {
	total := 0
	for _, d := range items {
		n, err := dataSize(d)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func encodeData(w *writer, d core.Data) error {
	switch v := d.(type) {
	case core.Boolean:
		writeBoolField(w, tagDataBool, bool(v))
	case core.BitString:
		if v.Padding > 7 {
			return fmt.Errorf("%w: bit-string padding %d", core.ErrValueOutOfRange, v.Padding)
		}
		writeTagLen(w, tagDataBitString, 1+len(v.Bits))
		w.writeByte(v.Padding)
		w.write(v.Bits)
	case core.Integer:
		writeSignedField(w, tagDataInt, int64(v))
	case core.Unsigned:
		writeUnsignedField(w, tagDataUint, uint64(v))
	case core.Float32:
		writeFloat32Field(w, tagDataFloat, float32(v))
	case core.Float64:
		writeFloat64Field(w, tagDataFloat, float64(v))
	case core.OctetString:
		writeBytesField(w, tagDataOctets, v)
	case core.VisibleString:
		writeStringField(w, tagDataVisible, string(v))
	case core.MmsString:
		writeStringField(w, tagDataMms, string(v))
	case core.UTCTime:
		writeTimestampField(w, tagDataUtcTime, core.Timestamp(v))
	case core.Array:
		return encodeDataSeq(w, tagDataArray, []core.Data(v))
	case core.Structure:
		return encodeDataSeq(w, tagDataStruct, []core.Data(v))
	default:
		return fmt.Errorf("%w: data element %T", core.ErrUnexpectedTag, d)
	}
	return nil
}

func encodeDataSeq(w *writer, tag byte, items []core.Data) error {
	n, err := dataSeqSize(items)
	if err != nil {
		return err
	}
	writeTagLen(w, tag, n)
	for _, d := range items {
		if err := encodeData(w, d); err != nil {
			return err
		}
	}
	return nil
}

// decodeData reads one data element. Content octets are copied, never
// aliased, so decoded values survive capture buffer reuse.
func decodeData(r *reader) (core.Data, error) {
	tag, n, err := readTagLen(r)
	if err != nil {
		return nil, err
	}
	content, err := r.bytes(n)
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagDataBool:
		v, err := readBool(content)
		if err != nil {
			return nil, err
		}
		return core.Boolean(v), nil
	case tagDataBitString:
		if len(content) < 1 {
			return nil, fmt.Errorf("%w: empty bit-string", core.ErrInvalidLength)
		}
		if content[0] > 7 {
			return nil, fmt.Errorf("%w: bit-string padding %d", core.ErrInvalidLength, content[0])
		}
		bits := make([]byte, len(content)-1)
		copy(bits, content[1:])
		return core.BitString{Padding: content[0], Bits: bits}, nil
	case tagDataInt:
		v, err := readSigned(content)
		if err != nil {
			return nil, err
		}
		return core.Integer(v), nil
	case tagDataUint:
		v, err := readUnsigned(content)
		if err != nil {
			return nil, err
		}
		return core.Unsigned(v), nil
	case tagDataFloat:
		return decodeFloat(content)
	case tagDataOctets:
		b := make([]byte, len(content))
		copy(b, content)
		return core.OctetString(b), nil
	case tagDataVisible:
		return core.VisibleString(content), nil
	case tagDataMms:
		return core.MmsString(content), nil
	case tagDataUtcTime:
		t, err := readTimestamp(content)
		if err != nil {
			return nil, err
		}
		return core.UTCTime(t), nil
	case tagDataArray:
		items, err := decodeDataSeq(newReader(content))
		if err != nil {
			return nil, err
		}
		return core.Array(items), nil
	case tagDataStruct:
		items, err := decodeDataSeq(newReader(content))
		if err != nil {
			return nil, err
		}
		return core.Structure(items), nil
	default:
		return nil, fmt.Errorf("%w: data element tag 0x%02x", core.ErrUnexpectedTag, tag)
	}
}

// decodeDataSeq reads elements until the reader is exhausted.
func decodeDataSeq(r *reader) ([]core.Data, error) {
	var items []core.Data
	for r.remaining() > 0 {
		d, err := decodeData(r)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, nil
}

func decodeFloat(content []byte) (core.Data, error) {
	switch len(content) {
	case 5:
		if content[0] != floatDescriptor32 {
			return nil, fmt.Errorf("%w: float descriptor 0x%02x", core.ErrInvalidLength, content[0])
		}
		bits := uint32(content[1])<<24 | uint32(content[2])<<16 | uint32(content[3])<<8 | uint32(content[4])
		return core.Float32(math.Float32frombits(bits)), nil
	case 9:
		if content[0] != floatDescriptor64 {
			return nil, fmt.Errorf("%w: float descriptor 0x%02x", core.ErrInvalidLength, content[0])
		}
		var bits uint64
		for _, b := range content[1:] {
			bits = bits<<8 | uint64(b)
		}
		return core.Float64(math.Float64frombits(bits)), nil
	default:
		return nil, fmt.Errorf("%w: float of %d octets", core.ErrInvalidLength, len(content))
	}
}
