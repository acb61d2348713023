// Package main is the entry point for the procbus process bus agent.
package main

import (
	"fmt"
	"os"

	"icc.tech/procbus-agent/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
