package capture

import (
	"fmt"
	"net"

	"github.com/google/gopacket/pcap"
)

// Injector writes raw frames to an interface through a pcap handle.
// It satisfies publisher.Transmitter.
type Injector struct {
	handle *pcap.Handle
	srcMAC [6]byte
}

// NewInjector opens the device for transmission and resolves its MAC
// address. srcMACOverride, when non-empty, replaces the interface MAC.
func NewInjector(device, srcMACOverride string) (*Injector, error) {
	handle, err := pcap.OpenLive(device, 256, false, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("open %s for injection: %w", device, err)
	}
	inj := &Injector{handle: handle}

	if srcMACOverride != "" {
		hw, err := net.ParseMAC(srcMACOverride)
		if err != nil || len(hw) != 6 {
			handle.Close()
			return nil, fmt.Errorf("bad src_mac %q: %w", srcMACOverride, err)
		}
		copy(inj.srcMAC[:], hw)
		return inj, nil
	}

	iface, err := net.InterfaceByName(device)
	if err != nil {
		handle.Close()
		return nil, fmt.Errorf("resolve %s: %w", device, err)
	}
	if len(iface.HardwareAddr) == 6 {
		copy(inj.srcMAC[:], iface.HardwareAddr)
	}
	return inj, nil
}

// SrcMAC returns the source address stamped into published frames.
func (i *Injector) SrcMAC() [6]byte { return i.srcMAC }

// Transmit puts one frame on the wire.
func (i *Injector) Transmit(frame []byte) error {
	return i.handle.WritePacketData(frame)
}

// Close releases the handle.
func (i *Injector) Close() {
	i.handle.Close()
}
