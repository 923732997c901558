package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"interviewsim/pkg/eventlog"
	"interviewsim/pkg/proto"
)

func newReplayCmd() *cobra.Command {
	var (
		dir         string
		sessionID   string
		repliesOnly bool
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Print the envelopes recorded in a session event log",
		Long: `replay reads the JSONL event log written during a session and prints every routed
envelope in order. Without --session it lists the logs found in --dir.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if sessionID == "" {
				files, err := eventlog.ListLogFiles(dir)
				if err != nil {
					return err
				}
				if len(files) == 0 {
					fmt.Fprintf(out, "No event logs in %s\n", dir)
					return nil
				}
				for _, f := range files {
					fmt.Fprintln(out, sessionFromLog(f))
				}
				return nil
			}

			envs, err := eventlog.ReadEnvelopes(filepath.Join(dir, eventlog.FileName(sessionID)))
			if err != nil {
				return err
			}
			printed := 0
			for _, env := range envs {
				if repliesOnly && env.Payload.Kind() != proto.PayloadKindReply {
					continue
				}
				printEnvelope(out, env)
				printed++
			}
			fmt.Fprintf(out, "%d of %d envelopes\n", printed, len(envs))
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".interviewsim/logs", "event log directory")
	cmd.Flags().StringVar(&sessionID, "session", "", "session to replay")
	cmd.Flags().BoolVar(&repliesOnly, "replies", false, "only print replies")
	return cmd
}

func sessionFromLog(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), ".jsonl")
	return strings.TrimPrefix(name, "session-")
}

func printEnvelope(w io.Writer, env *proto.Envelope) {
	fmt.Fprintf(w, "%s %s\n", env.CreatedAt.Format("15:04:05.000"), env.Describe())
	switch p := env.Payload.(type) {
	case *proto.MasterPayload:
		fmt.Fprintf(w, "    %s %s / %s / %s -> %s\n", p.Purpose, p.Topic, p.Subtopic, p.Section, p.Speaker)
	case *proto.ReplyPayload:
		label := p.Speaker
		if p.Fallback {
			label += " (fallback)"
		}
		for _, line := range p.Lines {
			fmt.Fprintf(w, "    %s: %s\n", label, line)
		}
		if p.Score != nil {
			fmt.Fprintf(w, "    score %.1f\n", *p.Score)
		}
	case *proto.SystemPayload:
		fmt.Fprintf(w, "    %s %s\n", p.Signal, p.Round)
	}
}
