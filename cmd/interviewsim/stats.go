package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"interviewsim/internal/kernel"
	"interviewsim/pkg/config"
	"interviewsim/pkg/metrics"
	"interviewsim/pkg/orchestrator"
	"interviewsim/pkg/persistence"
)

func newStatsCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the stored report of a session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd, v)
		},
	}
	flags := cmd.Flags()
	flags.String("session", "", "session id")
	flags.String("backend", "", "persistence backend: sqlite or redis")
	flags.String("prometheus", "", "Prometheus URL to read the session's counters from")
	flags.Bool("json", false, "print the stored report as JSON")
	_ = v.BindPFlag("session_id", flags.Lookup("session"))
	_ = v.BindPFlag("persistence.backend", flags.Lookup("backend"))
	return cmd
}

func runStats(cmd *cobra.Command, v *viper.Viper) error {
	ctx := contextFor(cmd)
	flags := cmd.Flags()
	cfgPath, _ := flags.GetString("config")
	asJSON, _ := flags.GetBool("json")
	promURL, _ := flags.GetString("prometheus")

	cfg, err := config.LoadWith(v, cfgPath)
	if err != nil {
		return err
	}
	id, err := cfg.RequireSessionID()
	if err != nil {
		return fmt.Errorf("--session: %w", err)
	}

	st, err := kernel.OpenStore(ctx, &cfg.Persistence)
	if err != nil {
		return err
	}
	if st == nil {
		return fmt.Errorf("stats needs a persistence backend")
	}
	defer st.Close()

	sess, err := st.GetSession(ctx, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	blob, err := st.LoadRecord(ctx, id, persistence.KeyReport)
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		fmt.Fprintf(out, "Session %s (%s) has no checkpoint yet\n", id, sess.Status)
		return nil
	case err != nil:
		return err
	}

	if asJSON {
		_, err = out.Write(append(blob, '\n'))
		return err
	}

	var report orchestrator.Report
	if err := json.Unmarshal(blob, &report); err != nil {
		return fmt.Errorf("failed to decode report: %w", err)
	}
	fmt.Fprintf(out, "Session %s started %s, status %s\n", id, sess.StartedAt.Local().Format("2006-01-02 15:04"), sess.Status)
	renderReport(out, &report)

	if promURL != "" {
		qs, err := metrics.NewQueryService(promURL)
		if err != nil {
			return err
		}
		m, err := qs.GetSessionMetrics(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to query Prometheus: %w", err)
		}
		fmt.Fprintf(out, "\ntokens %d (prompt %d, completion %d), mean reply %.2fs, sections %d\n",
			m.TotalTokens, m.PromptTokens, m.CompletionTokens, m.MeanReplySeconds, m.SectionsCompleted)
	}
	return nil
}
