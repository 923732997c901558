package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "interviewsim",
		Short: "Simulated panel interviews driven by a plan",
		Long: `interviewsim runs a panel interview: an orchestrator walks the plan's rounds,
topics, subtopics and sections, and panelists, a candidate, an activity monitor and
an evaluator take turns in their own goroutines.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringP("config", "c", "", "config file (YAML, TOML or JSON)")

	root.AddCommand(newRunCmd(), newValidateCmd(), newStatsCmd(), newReplayCmd(), newVersionCmd())
	return root
}
