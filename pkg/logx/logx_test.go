package logx

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// setupTestLogger redirects output to a buffer for the duration of the test.
func setupTestLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(nil) })
	return &buf
}

func TestLogFormat(t *testing.T) {
	buf := setupTestLogger(t)

	logger := NewLogger("orchestrator")
	logger.Info("Dispatching %s", "turn")

	output := buf.String()
	if !strings.Contains(output, "[orchestrator]") {
		t.Errorf("Expected component in output, got: %s", output)
	}
	if !strings.Contains(output, "INFO: Dispatching turn") {
		t.Errorf("Expected level and message in output, got: %s", output)
	}
}

func TestLogLevels(t *testing.T) {
	logger := NewLogger("panelist")

	tests := []struct {
		level    Level
		logFunc  func(string, ...any)
		expected string
	}{
		{LevelDebug, logger.Debug, "DEBUG"},
		{LevelInfo, logger.Info, "INFO"},
		{LevelWarn, logger.Warn, "WARN"},
		{LevelError, logger.Error, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			buf := setupTestLogger(t)
			if tt.level == LevelDebug {
				SetDebugConfig(true, nil)
				defer SetDebugConfig(false, nil)
			}

			tt.logFunc("test message")

			if !strings.Contains(buf.String(), tt.expected) {
				t.Errorf("Expected level '%s' in output, got: %s", tt.expected, buf.String())
			}
		})
	}
}

func TestDebugSuppressedWhenDisabled(t *testing.T) {
	buf := setupTestLogger(t)
	SetDebugConfig(false, nil)

	NewLogger("candidate").Debug("hidden")
	Debug(context.Background(), "actor", "hidden too")

	if buf.Len() != 0 {
		t.Errorf("Expected no output, got: %s", buf.String())
	}
}

func TestDebugDomainFilter(t *testing.T) {
	buf := setupTestLogger(t)
	SetDebugConfig(true, []string{"dispatch"})
	defer SetDebugConfig(false, nil)

	ctx := WithComponent(context.Background(), "dispatcher")
	Debug(ctx, "dispatch", "routed %d", 3)
	Debug(ctx, "actor", "filtered")

	output := buf.String()
	if !strings.Contains(output, "[dispatcher]") || !strings.Contains(output, "[dispatch] routed 3") {
		t.Errorf("Expected dispatch debug line, got: %s", output)
	}
	if strings.Contains(output, "filtered") {
		t.Errorf("Expected actor domain to be filtered, got: %s", output)
	}
}

func TestWithSession(t *testing.T) {
	buf := setupTestLogger(t)

	base := NewLogger("kernel")
	scoped := base.WithSession("s-1")
	scoped.Info("started")

	if !strings.Contains(buf.String(), "[kernel@s-1]") {
		t.Errorf("Expected session tag, got: %s", buf.String())
	}
	if base.GetComponent() != "kernel" {
		t.Errorf("Expected base logger unchanged, got %s", base.GetComponent())
	}
}

func TestTimestampFormat(t *testing.T) {
	buf := setupTestLogger(t)

	NewLogger("test").Info("timestamp test")

	output := buf.String()
	start := strings.Index(output, "[")
	end := strings.Index(output, "]")
	if start == -1 || end <= start {
		t.Fatalf("Could not find timestamp in output: %s", output)
	}
	if _, err := time.Parse(timestampFormat, output[start+1:end]); err != nil {
		t.Errorf("Invalid timestamp format: %v", err)
	}
}

func TestWrap(t *testing.T) {
	setupTestLogger(t)

	if Wrap(nil, "noop") != nil {
		t.Error("Expected nil for nil error")
	}

	base := errors.New("boom")
	err := Wrap(base, "open store")
	if !errors.Is(err, base) {
		t.Errorf("Expected wrapped error to match base")
	}
	if err.Error() != "open store: boom" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
}
