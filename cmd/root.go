// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "procbus",
	Short: "Procbus - IEC 61850 process bus agent",
	Long: `Procbus is an IEC 61850 process bus agent for substation networks.
It publishes GOOSE messages with standard-compliant retransmission and
captures GOOSE (61850-8-1) and Sampled Values (61850-9-2 LE) traffic
straight off the wire.

Commands:
  publish   run the GOOSE publisher with its WebSocket control plane
  listen    capture and decode process bus traffic to stdout`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "/etc/procbus/config.yml",
		"config file path")

	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(listenCmd)
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
