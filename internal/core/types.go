// Package core holds the wire-level value types shared by the codec,
// the publisher and the control plane.
package core

// EtherType values carried by IEC 61850 process-bus frames.
const (
	EtherTypeGoose uint16 = 0x88B8
	EtherTypeSMV   uint16 = 0x88BA
	EtherTypeVLAN  uint16 = 0x8100
)

// SimulationBit is the MSB of the first reserved word in the 61850
// frame header. Set on SMV frames published by a simulator.
const SimulationBit uint16 = 0x8000

// EthernetHeader is the layer-2 header of a GOOSE or SMV frame,
// including the 61850-specific APPID/length/reserved words that follow
// the EtherType.
type EthernetHeader struct {
	DstMAC [6]byte
	SrcMAC [6]byte

	// VLAN carries the optional 802.1Q tag. TCI is the raw tag control
	// word (PCP | DEI | VID); zero HasVLAN means the frame is untagged.
	HasVLAN bool
	TCI     uint16

	EtherType uint16
	AppID     uint16

	// Length is the value of the header length field as found on the
	// wire. The encoder recomputes it and never trusts this value.
	Length uint16

	// Reserved1 carries the simulation bit in its MSB on SMV frames.
	// Reserved2 is zero on everything seen in the field but is kept so
	// frames round-trip byte for byte.
	Reserved1 uint16
	Reserved2 uint16
}

// HeaderSize returns the on-wire size of the header in octets:
// 22 untagged, 26 with a VLAN tag.
func (h *EthernetHeader) HeaderSize() int {
	if h.HasVLAN {
		return 26
	}
	return 22
}

// VLANPriority extracts the PCP bits from the tag control word.
func (h *EthernetHeader) VLANPriority() uint8 { return uint8(h.TCI >> 13) }

// VLANID extracts the 12-bit VLAN identifier from the tag control word.
func (h *EthernetHeader) VLANID() uint16 { return h.TCI & 0x0FFF }

// Simulated reports whether the simulation bit is set in Reserved1.
func (h *EthernetHeader) Simulated() bool { return h.Reserved1&SimulationBit != 0 }

// IsGoose reports whether the frame carries a GOOSE APDU.
func (h *EthernetHeader) IsGoose() bool { return h.EtherType == EtherTypeGoose }

// IsSMV reports whether the frame carries a sampled-values APDU.
func (h *EthernetHeader) IsSMV() bool { return h.EtherType == EtherTypeSMV }
