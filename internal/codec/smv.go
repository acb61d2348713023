package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"icc.tech/procbus-agent/internal/core"
)

// Sampled-values APDU tags.
const (
	tagSavPdu     = 0x60
	tagNoAsdu     = 0x80
	tagSecurity   = 0x81
	tagAsduSeq    = 0xA2
	tagAsdu       = 0x30
	tagSvID       = 0x80
	tagSmvDatSet  = 0x81
	tagSmpCnt     = 0x82
	tagSmvConfRev = 0x83
	tagRefrTm     = 0x84
	tagSmpSynch   = 0x85
	tagSmpRate    = 0x86
	tagSampleData = 0x87
	tagSmpMod     = 0x88
	tagGmIdentity = 0x89
)

// sampleWidth is the fixed on-wire size of one sample: a 32-bit scaled
// value followed by its 32-bit quality word, no per-sample tags.
const sampleWidth = 8

func asduContentSize(a *core.SavAsdu) int {
	n := fieldSize(len(a.SvID))
	if a.DatSet != nil {
		n += fieldSize(len(*a.DatSet))
	}
	n += fieldSize(2) // smpCnt
	n += fieldSize(4) // confRev
	if a.RefrTm != nil {
		n += fieldSize(8)
	}
	n += fieldSize(1) // smpSynch
	if a.SmpRate != nil {
		n += fieldSize(2)
	}
	n += fieldSize(sampleWidth * len(a.Samples))
	if a.SmpMod != nil {
		n += fieldSize(2)
	}
	if a.GmIdentity != nil {
		n += fieldSize(8)
	}
	return n
}

// savPduSizes returns the content size of the savPdu wrapper and of
// the ASDU sequence inside it.
func savPduSizes(pdu *core.SavPdu) (pduContent, seqContent int) {
	for i := range pdu.Asdus {
		seqContent += fieldSize(asduContentSize(&pdu.Asdus[i]))
	}
	pduContent = fieldSize(unsignedSize(uint64(pdu.NoAsdu)))
	if pdu.Security != nil {
		pduContent += fieldSize(len(pdu.Security))
	}
	pduContent += fieldSize(seqContent)
	return pduContent, seqContent
}

// EncodeSMV builds a complete sampled-values frame: layer-2 header
// (EtherType forced to 0x88BA, length recomputed, simulation bit set
// in the first reserved word) followed by the savPdu APDU. The frame
// is written into one exactly sized buffer.
func EncodeSMV(h core.EthernetHeader, pdu *core.SavPdu) ([]byte, error) {
	if int(pdu.NoAsdu) != len(pdu.Asdus) {
		return nil, fmt.Errorf("%w: declared %d, have %d",
			core.ErrAsduCountMismatch, pdu.NoAsdu, len(pdu.Asdus))
	}
	pduContent, seqContent := savPduSizes(pdu)
	apduSize := fieldSize(pduContent)
	if apduSize > maxApduSize {
		return nil, fmt.Errorf("%w: APDU of %d octets overflows the frame length field",
			core.ErrInvalidLength, apduSize)
	}

	h.Reserved1 &^= core.SimulationBit
	if pdu.Simulation {
		h.Reserved1 |= core.SimulationBit
	}

	w := newWriter(h.HeaderSize() + apduSize)
	encodeFrameHeader(w, &h, core.EtherTypeSMV, apduSize)

	writeTagLen(w, tagSavPdu, pduContent)
	writeUnsignedField(w, tagNoAsdu, uint64(pdu.NoAsdu))
	if pdu.Security != nil {
		writeBytesField(w, tagSecurity, pdu.Security)
	}
	writeTagLen(w, tagAsduSeq, seqContent)
	for i := range pdu.Asdus {
		encodeAsdu(w, &pdu.Asdus[i])
	}
	return w.buf, nil
}

func encodeAsdu(w *writer, a *core.SavAsdu) {
	writeTagLen(w, tagAsdu, asduContentSize(a))
	writeStringField(w, tagSvID, a.SvID)
	if a.DatSet != nil {
		writeStringField(w, tagSmvDatSet, *a.DatSet)
	}
	writeTagLen(w, tagSmpCnt, 2)
	w.writeUint16(a.SmpCnt)
	writeTagLen(w, tagSmvConfRev, 4)
	w.writeUint32(a.ConfRev)
	if a.RefrTm != nil {
		writeTimestampField(w, tagRefrTm, *a.RefrTm)
	}
	writeTagLen(w, tagSmpSynch, 1)
	w.writeByte(a.SmpSynch)
	if a.SmpRate != nil {
		writeTagLen(w, tagSmpRate, 2)
		w.writeUint16(*a.SmpRate)
	}
	writeTagLen(w, tagSampleData, sampleWidth*len(a.Samples))
	for _, s := range a.Samples {
		w.writeUint32(uint32(s.Value))
		w.writeUint32(s.Quality.Word())
	}
	if a.SmpMod != nil {
		writeTagLen(w, tagSmpMod, 2)
		w.writeUint16(*a.SmpMod)
	}
	if a.GmIdentity != nil {
		writeBytesField(w, tagGmIdentity, a.GmIdentity[:])
	}
}

// DecodeSMV parses the savPdu APDU that follows the frame header. The
// simulation flag comes from the header's reserved word. Trailing
// octets in the ASDU sequence beyond the declared count are ignored;
// running out before the count is an error.
func DecodeSMV(h core.EthernetHeader, apdu []byte) (core.SavPdu, error) {
	pdu := core.SavPdu{Simulation: h.Simulated()}

	body, err := expectField(newReader(apdu), tagSavPdu)
	if err != nil {
		return pdu, err
	}

	b, err := expectBytes(body, tagNoAsdu)
	if err != nil {
		return pdu, err
	}
	noAsdu, err := readUnsigned(b)
	if err != nil {
		return pdu, err
	}
	if noAsdu > math.MaxUint16 {
		return pdu, fmt.Errorf("%w: noASDU %d", core.ErrValueOutOfRange, noAsdu)
	}
	pdu.NoAsdu = uint16(noAsdu)

	if tag, ok := body.peek(); ok && tag == tagSecurity {
		if b, err = expectBytes(body, tagSecurity); err != nil {
			return pdu, err
		}
		pdu.Security = make([]byte, len(b))
		copy(pdu.Security, b)
	}

	seq, err := expectField(body, tagAsduSeq)
	if err != nil {
		return pdu, err
	}
	pdu.Asdus = make([]core.SavAsdu, 0, pdu.NoAsdu)
	for i := 0; i < int(pdu.NoAsdu); i++ {
		if seq.remaining() == 0 {
			return pdu, fmt.Errorf("%w: declared %d, found %d",
				core.ErrAsduCountMismatch, pdu.NoAsdu, i)
		}
		inner, err := expectField(seq, tagAsdu)
		if err != nil {
			return pdu, err
		}
		a, err := decodeAsdu(inner)
		if err != nil {
			return pdu, err
		}
		pdu.Asdus = append(pdu.Asdus, a)
	}
	return pdu, nil
}

func decodeAsdu(r *reader) (core.SavAsdu, error) {
	var a core.SavAsdu

	b, err := expectBytes(r, tagSvID)
	if err != nil {
		return a, err
	}
	a.SvID = string(b)

	if tag, ok := r.peek(); ok && tag == tagSmvDatSet {
		if b, err = expectBytes(r, tagSmvDatSet); err != nil {
			return a, err
		}
		ds := string(b)
		a.DatSet = &ds
	}

	if a.SmpCnt, err = expectFixedUint16(r, tagSmpCnt); err != nil {
		return a, err
	}

	if b, err = expectBytes(r, tagSmvConfRev); err != nil {
		return a, err
	}
	if len(b) != 4 {
		return a, fmt.Errorf("%w: confRev of %d octets", core.ErrInvalidLength, len(b))
	}
	a.ConfRev = binary.BigEndian.Uint32(b)

	if tag, ok := r.peek(); ok && tag == tagRefrTm {
		if b, err = expectBytes(r, tagRefrTm); err != nil {
			return a, err
		}
		t, err := readTimestamp(b)
		if err != nil {
			return a, err
		}
		a.RefrTm = &t
	}

	if b, err = expectBytes(r, tagSmpSynch); err != nil {
		return a, err
	}
	if len(b) != 1 {
		return a, fmt.Errorf("%w: smpSynch of %d octets", core.ErrInvalidLength, len(b))
	}
	a.SmpSynch = b[0]

	if tag, ok := r.peek(); ok && tag == tagSmpRate {
		v, err := expectFixedUint16(r, tagSmpRate)
		if err != nil {
			return a, err
		}
		a.SmpRate = &v
	}

	if b, err = expectBytes(r, tagSampleData); err != nil {
		return a, err
	}
	if len(b)%sampleWidth != 0 {
		return a, fmt.Errorf("%w: sample region of %d octets", core.ErrInvalidLength, len(b))
	}
	a.Samples = make([]core.Sample, len(b)/sampleWidth)
	for i := range a.Samples {
		off := i * sampleWidth
		a.Samples[i] = core.Sample{
			Value:   int32(binary.BigEndian.Uint32(b[off : off+4])),
			Quality: core.QualityFromWord(binary.BigEndian.Uint32(b[off+4 : off+8])),
		}
	}

	if tag, ok := r.peek(); ok && tag == tagSmpMod {
		v, err := expectFixedUint16(r, tagSmpMod)
		if err != nil {
			return a, err
		}
		a.SmpMod = &v
	}

	if tag, ok := r.peek(); ok && tag == tagGmIdentity {
		if b, err = expectBytes(r, tagGmIdentity); err != nil {
			return a, err
		}
		if len(b) != 8 {
			return a, fmt.Errorf("%w: gmIdentity of %d octets", core.ErrInvalidLength, len(b))
		}
		var gm [8]byte
		copy(gm[:], b)
		a.GmIdentity = &gm
	}
	return a, nil
}

// DecodeSMVFrame parses a whole frame, header and APDU.
func DecodeSMVFrame(frame []byte) (core.SMVMessage, error) {
	h, apdu, err := DecodeFrameHeader(frame)
	if err != nil {
		return core.SMVMessage{}, err
	}
	pdu, err := DecodeSMV(h, apdu)
	if err != nil {
		return core.SMVMessage{}, err
	}
	return core.SMVMessage{Header: h, Pdu: pdu}, nil
}

func expectFixedUint16(r *reader, tag byte) (uint16, error) {
	b, err := expectBytes(r, tag)
	if err != nil {
		return 0, err
	}
	if len(b) != 2 {
		return 0, fmt.Errorf("%w: tag 0x%02x of %d octets", core.ErrInvalidLength, tag, len(b))
	}
	return binary.BigEndian.Uint16(b), nil
}
