// Command raftsim runs and inspects deterministic Raft simulation
// scenarios. Grounded on cuemby-warren/cmd/warren/main.go's cobra root
// command, subcommand, and cobra.OnInitialize(initLogging) pattern.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/vzdtic/raftsim/internal/rlog"
)

var jsonLogs bool

func main() {
	root := &cobra.Command{
		Use:   "raftsim",
		Short: "A deterministic discrete-event simulator for Raft",
	}
	root.PersistentFlags().BoolVar(&jsonLogs, "json-logs", false, "emit structured JSON logs instead of console output")
	cobra.OnInitialize(initLogging)

	root.AddCommand(newRunCmd())
	root.AddCommand(newReplCmd())
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func initLogging() {
	rlog.Init(rlog.Config{Level: rlog.InfoLevel, JSONOutput: jsonLogs})
}
