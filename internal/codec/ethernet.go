package codec

import (
	"icc.tech/procbus-agent/internal/core"
)

// DecodeFrameHeader parses the layer-2 header of a process-bus frame,
// including APPID, length and the two reserved words. It returns the
// header and the APDU octets that follow it. The header length field
// is recorded but never used for bounds.
func DecodeFrameHeader(frame []byte) (core.EthernetHeader, []byte, error) {
	var h core.EthernetHeader
	if len(frame) < 14 {
		return h, nil, core.ErrBufferTooShort
	}
	r := newReader(frame)
	copy(h.DstMAC[:], frame[0:6])
	copy(h.SrcMAC[:], frame[6:12])
	r.pos = 12

	et, _ := r.readUint16()
	if et == core.EtherTypeVLAN {
		h.HasVLAN = true
		tci, err := r.readUint16()
		if err != nil {
			return h, nil, core.ErrBufferTooShort
		}
		h.TCI = tci
		et, err = r.readUint16()
		if err != nil {
			return h, nil, core.ErrBufferTooShort
		}
	}
	h.EtherType = et

	var err error
	if h.AppID, err = r.readUint16(); err != nil {
		return h, nil, core.ErrBufferTooShort
	}
	if h.Length, err = r.readUint16(); err != nil {
		return h, nil, core.ErrBufferTooShort
	}
	if h.Reserved1, err = r.readUint16(); err != nil {
		return h, nil, core.ErrBufferTooShort
	}
	if h.Reserved2, err = r.readUint16(); err != nil {
		return h, nil, core.ErrBufferTooShort
	}
	return h, frame[r.pos:], nil
}

// maxApduSize keeps the recomputed header length field within its
// 16-bit range: length = APDU size + the 8 octets from APPID onward.
const maxApduSize = 0xFFFF - 8

// encodeFrameHeader writes the layer-2 header. The length field is
// always recomputed as the APDU size plus the eight octets from APPID
// onward; the EtherType is forced to match the APDU being written.
func encodeFrameHeader(w *writer, h *core.EthernetHeader, etherType uint16, apduSize int) {
	w.write(h.DstMAC[:])
	w.write(h.SrcMAC[:])
	if h.HasVLAN {
		w.writeUint16(core.EtherTypeVLAN)
		w.writeUint16(h.TCI)
	}
	w.writeUint16(etherType)
	w.writeUint16(h.AppID)
	w.writeUint16(uint16(apduSize + 8))
	w.writeUint16(h.Reserved1)
	w.writeUint16(h.Reserved2)
}
