package codec

import (
	"fmt"

	"icc.tech/procbus-agent/internal/core"
)

// GOOSE APDU tags.
const (
	tagGoosePdu       = 0x61
	tagGoCbRef        = 0x80
	tagTimeAllowed    = 0x81
	tagDatSet         = 0x82
	tagGoID           = 0x83
	tagGooseTimestamp = 0x84
	tagStNum          = 0x85
	tagSqNum          = 0x86
	tagSimulation     = 0x87
	tagConfRev        = 0x88
	tagNdsCom         = 0x89
	tagNumEntries     = 0x8A
	tagAllData        = 0xAB
)

// goosePduSizes returns the content size of the goosePdu wrapper and
// of the allData sequence inside it.
func goosePduSizes(pdu *core.GoosePdu) (pduContent, allData int, err error) {
	allData, err = dataSeqSize(pdu.AllData)
	if err != nil {
		return 0, 0, err
	}
	pduContent = fieldSize(len(pdu.GoCbRef)) +
		fieldSize(unsignedSize(uint64(pdu.TimeAllowedToLive))) +
		fieldSize(len(pdu.DatSet)) +
		fieldSize(len(pdu.GoID)) +
		fieldSize(8) + // t
		fieldSize(unsignedSize(uint64(pdu.StNum))) +
		fieldSize(unsignedSize(uint64(pdu.SqNum))) +
		fieldSize(1) + // simulation
		fieldSize(unsignedSize(uint64(pdu.ConfRev))) +
		fieldSize(1) + // ndsCom
		fieldSize(unsignedSize(uint64(pdu.NumDatSetEntries))) +
		fieldSize(allData)
	return pduContent, allData, nil
}

// EncodeGoose builds a complete GOOSE frame: layer-2 header (EtherType
// forced to 0x88B8, length recomputed) followed by the goosePdu APDU.
// The whole frame is written into one exactly sized buffer.
func EncodeGoose(h core.EthernetHeader, pdu *core.GoosePdu) ([]byte, error) {
	if int(pdu.NumDatSetEntries) != len(pdu.AllData) {
		return nil, fmt.Errorf("%w: declared %d, have %d",
			core.ErrFieldCountMismatch, pdu.NumDatSetEntries, len(pdu.AllData))
	}
	pduContent, allData, err := goosePduSizes(pdu)
	if err != nil {
		return nil, err
	}
	apduSize := fieldSize(pduContent)
	if apduSize > maxApduSize {
		return nil, fmt.Errorf("%w: APDU of %d octets overflows the frame length field",
			core.ErrInvalidLength, apduSize)
	}

	w := newWriter(h.HeaderSize() + apduSize)
	encodeFrameHeader(w, &h, core.EtherTypeGoose, apduSize)

	writeTagLen(w, tagGoosePdu, pduContent)
	writeStringField(w, tagGoCbRef, pdu.GoCbRef)
	writeUnsignedField(w, tagTimeAllowed, uint64(pdu.TimeAllowedToLive))
	writeStringField(w, tagDatSet, pdu.DatSet)
	writeStringField(w, tagGoID, pdu.GoID)
	writeTimestampField(w, tagGooseTimestamp, pdu.T)
	writeUnsignedField(w, tagStNum, uint64(pdu.StNum))
	writeUnsignedField(w, tagSqNum, uint64(pdu.SqNum))
	writeBoolField(w, tagSimulation, pdu.Simulation)
	writeUnsignedField(w, tagConfRev, uint64(pdu.ConfRev))
	writeBoolField(w, tagNdsCom, pdu.NdsCom)
	writeUnsignedField(w, tagNumEntries, uint64(pdu.NumDatSetEntries))

	writeTagLen(w, tagAllData, allData)
	for _, d := range pdu.AllData {
		if err := encodeData(w, d); err != nil {
			return nil, err
		}
	}
	return w.buf, nil
}

// DecodeGoose parses the goosePdu APDU that follows the frame header.
// Field tags are strict: any out-of-order or unknown tag fails the
// whole decode.
func DecodeGoose(apdu []byte) (core.GoosePdu, error) {
	var pdu core.GoosePdu

	body, err := expectField(newReader(apdu), tagGoosePdu)
	if err != nil {
		return pdu, err
	}

	b, err := expectBytes(body, tagGoCbRef)
	if err != nil {
		return pdu, err
	}
	pdu.GoCbRef = string(b)

	if b, err = expectBytes(body, tagTimeAllowed); err != nil {
		return pdu, err
	}
	if pdu.TimeAllowedToLive, err = readUnsigned32(b); err != nil {
		return pdu, err
	}

	if b, err = expectBytes(body, tagDatSet); err != nil {
		return pdu, err
	}
	pdu.DatSet = string(b)

	if b, err = expectBytes(body, tagGoID); err != nil {
		return pdu, err
	}
	pdu.GoID = string(b)

	if b, err = expectBytes(body, tagGooseTimestamp); err != nil {
		return pdu, err
	}
	if pdu.T, err = readTimestamp(b); err != nil {
		return pdu, err
	}

	if b, err = expectBytes(body, tagStNum); err != nil {
		return pdu, err
	}
	if pdu.StNum, err = readUnsigned32(b); err != nil {
		return pdu, err
	}

	if b, err = expectBytes(body, tagSqNum); err != nil {
		return pdu, err
	}
	if pdu.SqNum, err = readUnsigned32(b); err != nil {
		return pdu, err
	}

	if b, err = expectBytes(body, tagSimulation); err != nil {
		return pdu, err
	}
	if pdu.Simulation, err = readBool(b); err != nil {
		return pdu, err
	}

	if b, err = expectBytes(body, tagConfRev); err != nil {
		return pdu, err
	}
	if pdu.ConfRev, err = readUnsigned32(b); err != nil {
		return pdu, err
	}

	if b, err = expectBytes(body, tagNdsCom); err != nil {
		return pdu, err
	}
	if pdu.NdsCom, err = readBool(b); err != nil {
		return pdu, err
	}

	if b, err = expectBytes(body, tagNumEntries); err != nil {
		return pdu, err
	}
	if pdu.NumDatSetEntries, err = readUnsigned32(b); err != nil {
		return pdu, err
	}

	allData, err := expectField(body, tagAllData)
	if err != nil {
		return pdu, err
	}
	if pdu.AllData, err = decodeDataSeq(allData); err != nil {
		return pdu, err
	}
	if int(pdu.NumDatSetEntries) != len(pdu.AllData) {
		return pdu, fmt.Errorf("%w: declared %d, decoded %d",
			core.ErrFieldCountMismatch, pdu.NumDatSetEntries, len(pdu.AllData))
	}
	return pdu, nil
}

// DecodeGooseFrame parses a whole frame, header and APDU.
func DecodeGooseFrame(frame []byte) (core.GooseMessage, error) {
	h, apdu, err := DecodeFrameHeader(frame)
	if err != nil {
		return core.GooseMessage{}, err
	}
	pdu, err := DecodeGoose(apdu)
	if err != nil {
		return core.GooseMessage{}, err
	}
	return core.GooseMessage{Header: h, Pdu: pdu}, nil
}
