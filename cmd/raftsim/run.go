package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/vzdtic/raftsim/internal/config"
	"github.com/vzdtic/raftsim/internal/scenario"
	"github.com/vzdtic/raftsim/internal/sim"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Load a scenario, play it to the end, and report assertion results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(args[0])
		},
	}
}

func runScenario(path string) error {
	file, err := scenario.Load(path)
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	cfg := config.DefaultConfig()
	controller := sim.New(file, cfg, runID)

	results, err := controller.PlayToEnd(cfg)
	if err != nil {
		return err
	}

	failed := false
	for _, r := range results {
		status := "PASS"
		if !r.Passed {
			status = "FAIL"
			failed = true
		}
		fmt.Printf("[%s] %s (%s)\n", status, r.Kind, r.Detail)
	}
	if failed {
		os.Exit(1)
	}
	return nil
}
