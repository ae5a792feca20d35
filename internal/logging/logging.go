// Package logging configures the per-run execution log.
//
// Every orchestrator run gets its own log file under the logs directory,
// named with a timestamp and a short run ID. The log mode controls where
// records go: "full" writes to both the log file and stderr, "minimal"
// to stderr only, "quiet" to the file only.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Log modes.
const (
	ModeFull    = "full"
	ModeMinimal = "minimal"
	ModeQuiet   = "quiet"
)

// ParseLevel maps a --log-level value to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "WARNING", "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (want DEBUG, INFO, WARNING or ERROR)", s)
	}
}

// ValidMode reports whether s is a recognized log mode.
func ValidMode(s string) bool {
	switch s {
	case ModeFull, ModeMinimal, ModeQuiet:
		return true
	}
	return false
}

// RunLog is the logging setup for one orchestrator run.
type RunLog struct {
	// Logger is the structured logger for the run.
	Logger *slog.Logger

	// RunID identifies the run in log file names and records.
	RunID string

	// FilePath is the per-run log file, empty in minimal mode.
	FilePath string

	mode string
	file *os.File
}

// NewRunLog creates the logger for a run. logsDir may be empty in
// minimal mode; in the other modes the per-run file is created there.
func NewRunLog(logsDir, mode string, level slog.Level, now time.Time) (*RunLog, error) {
	if !ValidMode(mode) {
		return nil, fmt.Errorf("unknown log mode %q (want full, minimal or quiet)", mode)
	}

	runID := uuid.NewString()[:8]
	rl := &RunLog{RunID: runID, mode: mode}

	var writers []io.Writer
	if mode == ModeFull || mode == ModeMinimal {
		writers = append(writers, os.Stderr)
	}
	if mode == ModeFull || mode == ModeQuiet {
		name := fmt.Sprintf("run-%s-%s.log", now.UTC().Format("20060102-150405"), runID)
		path := filepath.Join(logsDir, name)

		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to create run log: %w", err)
		}
		rl.file = f
		rl.FilePath = path
		writers = append(writers, f)
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: level,
	})
	rl.Logger = slog.New(handler).With("run", runID)

	return rl, nil
}

// UnitOutput returns the writer unit stdout/stderr streams to: console
// and run log file per the log mode.
func (rl *RunLog) UnitOutput() io.Writer {
	var writers []io.Writer
	if rl.mode == ModeFull || rl.mode == ModeMinimal {
		writers = append(writers, os.Stdout)
	}
	if rl.file != nil {
		writers = append(writers, rl.file)
	}

	switch len(writers) {
	case 0:
		return io.Discard
	case 1:
		return writers[0]
	}
	return io.MultiWriter(writers...)
}

// Close flushes and closes the run log file, if any.
func (rl *RunLog) Close() error {
	if rl.file == nil {
		return nil
	}
	if err := rl.file.Sync(); err != nil {
		_ = rl.file.Close()
		return err
	}
	return rl.file.Close()
}
