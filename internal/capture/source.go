// Package capture reads and writes raw process-bus frames on a network
// interface: an AF_PACKET ring for the subscribe side and a pcap
// handle for injection.
package capture

import (
	"context"
	"errors"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/afpacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"

	"icc.tech/procbus-agent/internal/config"
	"icc.tech/procbus-agent/internal/metrics"
)

// Source captures frames from an interface through an AF_PACKET v3
// ring buffer, optionally narrowed by a BPF filter.
type Source struct {
	handle *afpacket.TPacket

	device    string
	frameSize int
	blockSize int
	numBlocks int
	timeoutMs int
	fanoutID  uint16
	bpfFilter string
}

// NewSource opens the capture ring described by cfg on the given device.
func NewSource(device string, cfg config.CaptureConfig) (*Source, error) {
	pageSize := os.Getpagesize()
	frameSize, blockSize, numBlocks, err := recomputeSize(cfg.BufferSizeMB, cfg.SnapLen, pageSize)
	if err != nil {
		return nil, err
	}
	s := &Source{
		device:    device,
		frameSize: frameSize,
		blockSize: blockSize,
		numBlocks: numBlocks,
		timeoutMs: cfg.TimeoutMs,
		fanoutID:  cfg.FanoutID,
		bpfFilter: cfg.BPFFilter,
	}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Source) open() error {
	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(s.device),
		afpacket.OptFrameSize(s.frameSize),
		afpacket.OptBlockSize(s.blockSize),
		afpacket.OptNumBlocks(s.numBlocks),
		afpacket.OptPollTimeout(s.timeoutMs),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	)
	if err != nil {
		return err
	}

	if s.fanoutID > 0 {
		if err := tp.SetFanout(afpacket.FanoutHashWithDefrag, s.fanoutID); err != nil {
			return err
		}
	}

	if s.bpfFilter != "" {
		pcapBPF, err := pcap.CompileBPFFilter(layers.LinkTypeEthernet, s.frameSize, s.bpfFilter)
		if err != nil {
			return err
		}
		rawBPF := make([]bpf.RawInstruction, len(pcapBPF))
		for i, inst := range pcapBPF {
			rawBPF[i] = bpf.RawInstruction{
				Op: inst.Code,
				Jt: inst.Jt,
				Jf: inst.Jf,
				K:  inst.K,
			}
		}
		if err := tp.SetBPF(rawBPF); err != nil {
			return err
		}
	}
	s.handle = tp
	return nil
}

// Run delivers frames to fn until ctx is cancelled. The frame slice is
// only valid for the duration of the call; fn must copy what it keeps.
func (s *Source) Run(ctx context.Context, fn func(frame []byte, info gopacket.CaptureInfo)) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		data, info, err := s.handle.ZeroCopyReadPacketData()
		if err != nil {
			if errors.Is(err, afpacket.ErrTimeout) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		metrics.CapturePacketsTotal.WithLabelValues(s.device).Inc()
		fn(data, info)
	}
}

// Close releases the ring.
func (s *Source) Close() {
	if s.handle != nil {
		s.handle.Close()
	}
}
