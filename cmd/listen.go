package cmd

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/spf13/cobra"

	"icc.tech/procbus-agent/internal/capture"
	"icc.tech/procbus-agent/internal/codec"
	"icc.tech/procbus-agent/internal/command"
	"icc.tech/procbus-agent/internal/config"
	"icc.tech/procbus-agent/internal/core"
	"icc.tech/procbus-agent/internal/log"
	"icc.tech/procbus-agent/internal/metrics"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Capture and decode process bus traffic",
	Long: `Capture GOOSE and Sampled Values frames from the configured
interface and print each decoded frame as one JSON line on stdout.

When the control plane is enabled, decoded frames are also broadcast
to connected WebSocket clients.

Examples:
  procbus listen -c ./config.yml
`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runListen(); err != nil {
			exitWithError("listener failed", err)
		}
	},
}

func runListen() error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err := log.Init(cfg.Log); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := metricsServer.Start(ctx); err != nil {
			return err
		}
	}

	// Notification-only control endpoint: clients can watch the bus but
	// there is no publisher to command here.
	var control *command.Server
	if cfg.Control.Enabled {
		control = command.NewServer(cfg.Control.Listen, cfg.Control.Path, nil)
		if err := control.Start(ctx); err != nil {
			return err
		}
	}

	src, err := capture.NewSource(cfg.Node.Interface, cfg.Capture)
	if err != nil {
		return err
	}
	defer src.Close()

	go func() {
		waitForSignal()
		cancel()
	}()

	slog.Info("listening", "interface", cfg.Node.Interface, "filter", cfg.Capture.BPFFilter)

	out := json.NewEncoder(os.Stdout)
	err = src.Run(ctx, func(frame []byte, _ gopacket.CaptureInfo) {
		emitFrame(out, control, frame)
	})

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if control != nil {
		if serr := control.Stop(shutdownCtx); serr != nil {
			slog.Warn("control server shutdown", "error", serr)
		}
	}
	if metricsServer != nil {
		if serr := metricsServer.Stop(shutdownCtx); serr != nil {
			slog.Warn("metrics server shutdown", "error", serr)
		}
	}
	return err
}

// emitFrame decodes one captured frame and writes it as a JSON line.
// Frames that are not GOOSE or SMV slip past the BPF filter only in
// rare races, so they are dropped silently at debug level.
func emitFrame(out *json.Encoder, control *command.Server, frame []byte) {
	header, payload, err := codec.DecodeFrameHeader(frame)
	if err != nil {
		slog.Debug("undecodable frame header", "error", err, "len", len(frame))
		return
	}

	var notification any
	switch {
	case header.IsGoose():
		pdu, err := codec.DecodeGoose(payload)
		if err != nil {
			metrics.DecodeErrorsTotal.WithLabelValues("goose").Inc()
			slog.Debug("goose decode failed", "error", err)
			return
		}
		metrics.FramesDecodedTotal.WithLabelValues("goose").Inc()
		notification = command.NewGooseNotification(core.GooseMessage{Header: header, Pdu: pdu})
	case header.IsSMV():
		pdu, err := codec.DecodeSMV(header, payload)
		if err != nil {
			metrics.DecodeErrorsTotal.WithLabelValues("smv").Inc()
			slog.Debug("smv decode failed", "error", err)
			return
		}
		metrics.FramesDecodedTotal.WithLabelValues("smv").Inc()
		notification = command.NewSmvNotification(core.SMVMessage{Header: header, Pdu: pdu})
	default:
		slog.Debug("ignoring frame", "ethertype", header.EtherType)
		return
	}

	if err := out.Encode(notification); err != nil {
		slog.Warn("stdout write failed", "error", err)
	}
	if control != nil {
		control.Broadcast(notification)
	}
}
