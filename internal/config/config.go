// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"icc.tech/procbus-agent/internal/core"
)

// GlobalConfig represents the top-level static configuration.
// Maps to the `procbus:` root key in YAML.
type GlobalConfig struct {
	Node         NodeConfig          `mapstructure:"node"`
	Capture      CaptureConfig       `mapstructure:"capture"`
	Publisher    PublisherConfig     `mapstructure:"publisher"`
	Control      ControlConfig       `mapstructure:"control"`
	Metrics      MetricsConfig       `mapstructure:"metrics"`
	Log          LogConfig           `mapstructure:"log"`
	Publications []PublicationConfig `mapstructure:"publications"`
}

// NodeConfig contains node identification and interface settings.
type NodeConfig struct {
	Interface string `mapstructure:"interface"` // capture/injection device
	Hostname  string `mapstructure:"hostname"`  // Empty = os.Hostname()
	SrcMAC    string `mapstructure:"src_mac"`   // Empty = interface MAC at open time
}

// CaptureConfig contains AF_PACKET capture settings.
type CaptureConfig struct {
	SnapLen      int    `mapstructure:"snap_len"`
	BufferSizeMB int    `mapstructure:"buffer_size_mb"`
	TimeoutMs    int    `mapstructure:"timeout_ms"`
	FanoutID     uint16 `mapstructure:"fanout_id"`
	BPFFilter    string `mapstructure:"bpf_filter"`
}

// PublisherConfig contains publisher-wide settings.
type PublisherConfig struct {
	// PersistStNum makes a re-initialized publication resume above its
	// last state number instead of restarting at 1.
	PersistStNum bool `mapstructure:"persist_st_num"`
}

// ControlConfig contains the WebSocket control plane settings.
type ControlConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`  // debug / info / warn / error
	Format  string           `mapstructure:"format"` // json / text
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains structured log output destinations.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// VLANConfig configures the optional 802.1Q tag of a publication.
type VLANConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	ID       uint16 `mapstructure:"id"`
	Priority uint8  `mapstructure:"priority"`
}

// PublicationConfig declares one GOOSE publication started at boot.
// Data holds the initial data set in the control-plane value form
// ({type, value} maps); it may be empty.
type PublicationConfig struct {
	GoCbRef       string           `mapstructure:"go_cb_ref"`
	GoID          string           `mapstructure:"go_id"`
	DatSet        string           `mapstructure:"dat_set"`
	DstMAC        string           `mapstructure:"dst_mac"`
	AppID         uint16           `mapstructure:"appid"`
	VLAN          VLANConfig       `mapstructure:"vlan"`
	ConfRev       uint32           `mapstructure:"conf_rev"`
	NdsCom        bool             `mapstructure:"nds_com"`
	Simulation    bool             `mapstructure:"simulation"`
	MinRepetition time.Duration    `mapstructure:"min_repetition"`
	MaxRepetition time.Duration    `mapstructure:"max_repetition"`
	Data          []map[string]any `mapstructure:"data"`
}

// DstMACBytes parses the destination MAC address.
func (p *PublicationConfig) DstMACBytes() ([6]byte, error) {
	var out [6]byte
	hw, err := net.ParseMAC(p.DstMAC)
	if err != nil || len(hw) != 6 {
		return out, fmt.Errorf("%w: dst_mac %q", core.ErrConfigInvalid, p.DstMAC)
	}
	copy(out[:], hw)
	return out, nil
}

// TCI packs the VLAN priority and ID into the tag control word.
func (v *VLANConfig) TCI() uint16 {
	return uint16(v.Priority&0x07)<<13 | v.ID&0x0FFF
}

// configRoot is the top-level wrapper matching the YAML structure `procbus: ...`.
type configRoot struct {
	Procbus GlobalConfig `mapstructure:"procbus"`
}

// Load loads configuration from file.
// The YAML file uses `procbus:` as root key; env vars use the PROCBUS_
// prefix (e.g., PROCBUS_LOG_LEVEL).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Environment variable overrides. The `procbus.` key prefix maps
	// to PROCBUS_ in env vars via the key replacer
	// (key "procbus.log.level" → env "PROCBUS_LOG_LEVEL").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Procbus

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use the "procbus." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("procbus.log.level", "info")
	v.SetDefault("procbus.log.format", "json")
	v.SetDefault("procbus.log.outputs.file.enabled", false)
	v.SetDefault("procbus.log.outputs.file.path", "/var/log/procbus/procbus.log")
	v.SetDefault("procbus.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("procbus.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("procbus.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("procbus.log.outputs.file.rotation.compress", true)

	// Metrics defaults
	v.SetDefault("procbus.metrics.enabled", true)
	v.SetDefault("procbus.metrics.listen", ":9091")
	v.SetDefault("procbus.metrics.path", "/metrics")

	// Control plane defaults
	v.SetDefault("procbus.control.enabled", true)
	v.SetDefault("procbus.control.listen", ":8899")
	v.SetDefault("procbus.control.path", "/ws")

	// Capture defaults. The BPF filter keeps everything but
	// process-bus traffic out of the ring.
	v.SetDefault("procbus.capture.snap_len", 1600)
	v.SetDefault("procbus.capture.buffer_size_mb", 8)
	v.SetDefault("procbus.capture.timeout_ms", 100)
	v.SetDefault("procbus.capture.bpf_filter",
		"ether proto 0x88b8 or ether proto 0x88ba or (vlan and (ether proto 0x88b8 or ether proto 0x88ba))")
}

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug/info/warn/error)", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json/text)", cfg.Log.Format)
	}

	if cfg.Node.Hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("failed to get hostname: %w", err)
		}
		cfg.Node.Hostname = hostname
	}

	for i := range cfg.Publications {
		p := &cfg.Publications[i]
		if p.GoCbRef == "" {
			return fmt.Errorf("publications[%d]: go_cb_ref is required", i)
		}
		if _, err := p.DstMACBytes(); err != nil {
			return fmt.Errorf("publications[%d]: %w", i, err)
		}
		if p.MinRepetition == 0 {
			p.MinRepetition = 100 * time.Millisecond
		}
		if p.MaxRepetition == 0 {
			p.MaxRepetition = 2 * time.Second
		}
		if p.MaxRepetition < p.MinRepetition {
			return fmt.Errorf("publications[%d]: max_repetition %v below min_repetition %v",
				i, p.MaxRepetition, p.MinRepetition)
		}
	}
	return nil
}
