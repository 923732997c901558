package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"interviewsim/internal/kernel"
	"interviewsim/pkg/config"
	"interviewsim/pkg/logx"
	"interviewsim/pkg/plan"
)

func newRunCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an interview session",
		Long: `Runs every round of the plan to completion, printing the transcript as it happens.
Interrupting the run stops it at the next turn boundary; the session can then be
continued with --resume --session <id>.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSession(cmd, v)
		},
	}

	flags := cmd.Flags()
	flags.String("plan", "", "plan file (overrides the config)")
	flags.String("session", "", "session id (generated when empty)")
	flags.String("provider", "", "LLM provider: scripted, anthropic, openai, google or ollama")
	flags.String("model", "", "model name")
	flags.String("backend", "", "persistence backend: sqlite, redis or none")
	flags.Bool("status", false, "serve /healthz, /metrics and /progress")
	flags.Bool("resume", false, "continue the session named by --session from its last checkpoint")
	flags.Bool("human", false, "answer as the candidate from the terminal")
	flags.String("log-file", "", "write logs to this file instead of stderr")

	for key, flag := range map[string]string{
		"plan":                "plan",
		"session_id":          "session",
		"llm.provider":        "provider",
		"llm.model":           "model",
		"persistence.backend": "backend",
		"status.enabled":      "status",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
	return cmd
}

func runSession(cmd *cobra.Command, v *viper.Viper) error {
	flags := cmd.Flags()
	cfgPath, _ := flags.GetString("config")
	resume, _ := flags.GetBool("resume")
	human, _ := flags.GetBool("human")
	logFile, _ := flags.GetString("log-file")

	if logFile != "" {
		closeLog, err := redirectLogs(logFile)
		if err != nil {
			return err
		}
		defer closeLog()
	}

	cfg, err := config.LoadWith(v, cfgPath)
	if err != nil {
		return err
	}
	p, err := plan.Load(cfg.PlanPath)
	if err != nil {
		return logx.Wrap(err, "cannot start session")
	}

	ctx, stop := signal.NotifyContext(contextFor(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	k, err := kernel.NewKernel(ctx, cfg, p, kernel.Options{
		Resume: resume,
		Human:  human,
		Input:  os.Stdin,
		Output: cmd.OutOrStdout(),
	})
	if err != nil {
		return fmt.Errorf("failed to create kernel: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session %s: %s\n", k.Session.ID, p.Title)
	report, runErr := k.Run()
	renderReport(out, &report)
	if runErr != nil && ctx.Err() != nil {
		fmt.Fprintf(out, "\nStopped. Continue with: interviewsim run --resume --session %s\n", k.Session.ID)
		return nil
	}
	return runErr
}

func redirectLogs(path string) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	logx.SetOutput(f)
	return func() {
		logx.SetOutput(os.Stderr)
		_ = f.Close()
	}, nil
}

// contextFor is cmd.Context with a fallback for commands executed without one.
func contextFor(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
