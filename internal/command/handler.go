// Package command implements the JSON control plane: init/update/stop
// commands for the publisher and decoded-frame notifications, both
// carried over WebSocket.
package command

import (
	"fmt"
	"net"
	"time"

	"github.com/mitchellh/mapstructure"

	"icc.tech/procbus-agent/internal/config"
	"icc.tech/procbus-agent/internal/core"
	"icc.tech/procbus-agent/internal/publisher"
)

// Command is one control-plane request.
type Command struct {
	Cmd     string         `json:"cmd"` // init | update | stop | list
	ID      string         `json:"id,omitempty"`
	GoCbRef string         `json:"go_cb_ref,omitempty"`
	Config  map[string]any `json:"config,omitempty"`
	Data    []DataValue    `json:"data,omitempty"`
}

// Response answers one command.
type Response struct {
	ID     string   `json:"id,omitempty"`
	OK     bool     `json:"ok"`
	Error  string   `json:"error,omitempty"`
	Active []string `json:"active,omitempty"`
}

// PublicationSpec is the init command's config payload. Repetition
// intervals are milliseconds.
type PublicationSpec struct {
	GoID            string `mapstructure:"go_id"`
	DatSet          string `mapstructure:"dat_set"`
	DstMAC          string `mapstructure:"dst_mac"`
	AppID           uint16 `mapstructure:"appid"`
	VLANEnabled     bool   `mapstructure:"vlan_enabled"`
	VLANID          uint16 `mapstructure:"vlan_id"`
	VLANPriority    uint8  `mapstructure:"vlan_priority"`
	ConfRev         uint32 `mapstructure:"conf_rev"`
	NdsCom          bool   `mapstructure:"nds_com"`
	Simulation      bool   `mapstructure:"simulation"`
	MinRepetitionMs int    `mapstructure:"min_repetition_ms"`
	MaxRepetitionMs int    `mapstructure:"max_repetition_ms"`
}

// Handler dispatches control-plane commands to the publisher.
type Handler struct {
	pub    *publisher.Publisher
	srcMAC [6]byte
}

// NewHandler creates a Handler stamping srcMAC into published frames.
func NewHandler(pub *publisher.Publisher, srcMAC [6]byte) *Handler {
	return &Handler{pub: pub, srcMAC: srcMAC}
}

// Handle executes one command and returns its response.
func (h *Handler) Handle(cmd Command) Response {
	resp := Response{ID: cmd.ID}
	var err error
	switch cmd.Cmd {
	case "init":
		err = h.handleInit(cmd)
	case "update":
		var data []core.Data
		if data, err = DecodeValues(cmd.Data); err == nil {
			err = h.pub.Update(cmd.GoCbRef, data)
		}
	case "stop":
		err = h.pub.Stop(cmd.GoCbRef)
	case "list":
		resp.Active = h.pub.Active()
	default:
		err = fmt.Errorf("unknown command %q", cmd.Cmd)
	}
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.OK = true
	return resp
}

func (h *Handler) handleInit(cmd Command) error {
	if cmd.GoCbRef == "" {
		return fmt.Errorf("%w: go_cb_ref is required", core.ErrConfigInvalid)
	}
	var spec PublicationSpec
	if err := mapstructure.Decode(cmd.Config, &spec); err != nil {
		return fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
	}
	pcfg, err := h.publisherConfig(cmd.GoCbRef, spec)
	if err != nil {
		return err
	}
	data, err := DecodeValues(cmd.Data)
	if err != nil {
		return err
	}
	return h.pub.Init(pcfg, data)
}

func (h *Handler) publisherConfig(goCbRef string, spec PublicationSpec) (publisher.Config, error) {
	var cfg publisher.Config
	hw, err := net.ParseMAC(spec.DstMAC)
	if err != nil || len(hw) != 6 {
		return cfg, fmt.Errorf("%w: dst_mac %q", core.ErrConfigInvalid, spec.DstMAC)
	}
	var dst [6]byte
	copy(dst[:], hw)

	cfg = publisher.Config{
		Header: core.EthernetHeader{
			DstMAC:  dst,
			SrcMAC:  h.srcMAC,
			HasVLAN: spec.VLANEnabled,
			TCI:     uint16(spec.VLANPriority&0x07)<<13 | spec.VLANID&0x0FFF,
			AppID:   spec.AppID,
		},
		GoCbRef:       goCbRef,
		GoID:          spec.GoID,
		DatSet:        spec.DatSet,
		ConfRev:       spec.ConfRev,
		NdsCom:        spec.NdsCom,
		Simulation:    spec.Simulation,
		MinRepetition: time.Duration(spec.MinRepetitionMs) * time.Millisecond,
		MaxRepetition: time.Duration(spec.MaxRepetitionMs) * time.Millisecond,
	}
	return cfg, nil
}

// ConfigPublication converts a publications entry from the config file
// into the publisher form, used for publications started at boot.
func ConfigPublication(p config.PublicationConfig, srcMAC [6]byte) (publisher.Config, []core.Data, error) {
	dst, err := p.DstMACBytes()
	if err != nil {
		return publisher.Config{}, nil, err
	}
	data, err := DecodeValueMaps(p.Data)
	if err != nil {
		return publisher.Config{}, nil, fmt.Errorf("publication %s: %w", p.GoCbRef, err)
	}
	cfg := publisher.Config{
		Header: core.EthernetHeader{
			DstMAC:  dst,
			SrcMAC:  srcMAC,
			HasVLAN: p.VLAN.Enabled,
			TCI:     p.VLAN.TCI(),
			AppID:   p.AppID,
		},
		GoCbRef:       p.GoCbRef,
		GoID:          p.GoID,
		DatSet:        p.DatSet,
		ConfRev:       p.ConfRev,
		NdsCom:        p.NdsCom,
		Simulation:    p.Simulation,
		MinRepetition: p.MinRepetition,
		MaxRepetition: p.MaxRepetition,
	}
	return cfg, data, nil
}
