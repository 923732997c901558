package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"interviewsim/pkg/plan"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [plan]",
		Short: "Check a plan file for structural problems",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("plan")
			if len(args) > 0 {
				path = args[0]
			}
			return runValidate(cmd, path)
		},
	}
	cmd.Flags().String("plan", "configs/plan.example.yaml", "plan file to check")
	return cmd
}

func runValidate(cmd *cobra.Command, path string) error {
	p, err := plan.Load(path)
	if err != nil {
		var verr *plan.ValidationError
		if errors.As(err, &verr) {
			for _, problem := range verr.Problems {
				fmt.Fprintf(cmd.ErrOrStderr(), "  - %s\n", problem)
			}
			return fmt.Errorf("plan %s has %d problem(s)", path, len(verr.Problems))
		}
		return err
	}

	var topics, subtopics, sections int
	for _, rs := range p.Rounds {
		topics += len(rs.Topics)
		for _, ts := range rs.Topics {
			subtopics += len(ts.Subtopics)
			for _, st := range ts.Subtopics {
				sections += len(st.Sections)
			}
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Plan %q is valid: %d rounds, %d topics, %d subtopics, %d sections, %d panelists\n",
		p.Title, len(p.Rounds), topics, subtopics, sections, len(p.Participants.Panelists))
	return nil
}
