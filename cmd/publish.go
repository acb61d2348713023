package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"icc.tech/procbus-agent/internal/capture"
	"icc.tech/procbus-agent/internal/command"
	"icc.tech/procbus-agent/internal/config"
	"icc.tech/procbus-agent/internal/log"
	"icc.tech/procbus-agent/internal/metrics"
	"icc.tech/procbus-agent/internal/publisher"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Run the GOOSE publisher",
	Long: `Run the GOOSE publisher agent.

Publications declared in the config file start immediately; further
publications are controlled at runtime over the WebSocket control
plane (init / update / stop / list commands).

Examples:
  procbus publish                      # use /etc/procbus/config.yml
  procbus publish -c ./config.yml      # explicit config file
`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runPublish(); err != nil {
			exitWithError("publisher failed", err)
		}
	},
}

func runPublish() error {
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

	inj, err := capture.NewInjector(cfg.Node.Interface, cfg.Node.SrcMAC)
	if err != nil {
		return err
	}
	defer inj.Close()

	pub := publisher.New(inj, publisher.Options{PersistStNum: cfg.Publisher.PersistStNum})
	defer pub.Close()

	for i := range cfg.Publications {
		pcfg, data, err := command.ConfigPublication(cfg.Publications[i], inj.SrcMAC())
		if err != nil {
			return err
		}
		if err := pub.Init(pcfg, data); err != nil {
			return err
		}
	}

	var control *command.Server
	if cfg.Control.Enabled {
		handler := command.NewHandler(pub, inj.SrcMAC())
		control = command.NewServer(cfg.Control.Listen, cfg.Control.Path, handler)
		if err := control.Start(ctx); err != nil {
			return err
		}
	}

	slog.Info("publisher running",
		"node", cfg.Node.Hostname,
		"interface", cfg.Node.Interface,
		"publications", len(cfg.Publications))

	waitForSignal()
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if control != nil {
		if err := control.Stop(shutdownCtx); err != nil {
			slog.Warn("control server shutdown", "error", err)
		}
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("metrics server shutdown", "error", err)
		}
	}
	return nil
}

func waitForSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}
