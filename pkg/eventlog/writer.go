// Package eventlog keeps a JSONL audit trail of every envelope routed during a session.
package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"interviewsim/pkg/proto"
)

const maxLineBytes = 4 << 20

// Writer appends envelopes to one log file per session.
type Writer struct {
	logDir      string
	path        string
	currentFile *os.File
	mu          sync.Mutex
	written     int
}

// NewWriter opens (or appends to) the log file of sessionID inside logDir.
func NewWriter(logDir, sessionID string) (*Writer, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(logDir, FileName(sessionID))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	return &Writer{logDir: logDir, path: path, currentFile: file}, nil
}

// FileName is the log file name used for a session.
func FileName(sessionID string) string {
	return fmt.Sprintf("session-%s.jsonl", sessionID)
}

// WriteEnvelope appends one envelope as a JSON line.
func (w *Writer) WriteEnvelope(env *proto.Envelope) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile == nil {
		return fmt.Errorf("event log %s is closed", w.path)
	}

	jsonData, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to serialize envelope: %w", err)
	}
	jsonData = append(jsonData, '\n')

	if _, err := w.currentFile.Write(jsonData); err != nil {
		return fmt.Errorf("failed to write envelope: %w", err)
	}
	w.written++
	return nil
}

// Written returns how many envelopes were appended by this writer.
func (w *Writer) Written() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Path returns the file being written.
func (w *Writer) Path() string {
	return w.path
}

// Close syncs and closes the log file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile == nil {
		return nil
	}
	syncErr := w.currentFile.Sync()
	err := w.currentFile.Close()
	w.currentFile = nil
	if err != nil {
		return fmt.Errorf("failed to close event log file: %w", err)
	}
	if syncErr != nil {
		return fmt.Errorf("failed to sync event log file: %w", syncErr)
	}
	return nil
}

// ReadEnvelopes parses every envelope of a log file, in write order.
func ReadEnvelopes(logFilePath string) ([]*proto.Envelope, error) {
	f, err := os.Open(logFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}
	defer f.Close()

	var envelopes []*proto.Envelope
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		var env proto.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("failed to parse envelope on line %d: %w", line, err)
		}
		envelopes = append(envelopes, &env)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan log file: %w", err)
	}
	return envelopes, nil
}

// ListLogFiles returns all session log files in the log directory.
func ListLogFiles(logDir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(logDir, "session-*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("failed to list log files: %w", err)
	}
	return files, nil
}
