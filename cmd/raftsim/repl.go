package main

import (
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vzdtic/raftsim/internal/config"
	"github.com/vzdtic/raftsim/internal/model"
	"github.com/vzdtic/raftsim/internal/replcli"
)

var replSeed int64
var replNodes []string

func newReplCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive session against a fresh cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(replNodes) == 0 {
				replNodes = []string{"n1", "n2", "n3"}
			}
			runID := uuid.New().String()
			cmd.Printf("session %s, seed=%d, nodes=%v\n", runID, replSeed, replNodes)
			m := model.New(replNodes, replSeed, config.DefaultConfig())
			return replcli.New(m, os.Stdout).Run()
		},
	}
	cmd.Flags().Int64Var(&replSeed, "seed", 1, "PRNG seed for the interactive cluster")
	cmd.Flags().StringSliceVar(&replNodes, "nodes", nil, "comma-separated node IDs (default n1,n2,n3)")
	return cmd
}
