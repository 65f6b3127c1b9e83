// Package report hands the BI result directory to an external report
// renderer.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/JonMunkholm/salespipe/internal/logging"
)

// Builder renders a report from a directory of result files.
type Builder interface {
	Build(ctx context.Context, resultsDir string) error
}

// CommandBuilder runs an external program with the results directory
// appended as its last argument. An empty Command skips the stage.
type CommandBuilder struct {
	Command []string
	Timeout time.Duration
}

// NewCommandBuilder creates a CommandBuilder.
func NewCommandBuilder(command []string, timeout time.Duration) *CommandBuilder {
	return &CommandBuilder{Command: command, Timeout: timeout}
}

// Build runs the command. Output is captured and logged; a non-zero exit,
// timeout or missing results directory is an error.
func (b *CommandBuilder) Build(ctx context.Context, resultsDir string) error {
	logger := logging.FromContext(ctx)

	if len(b.Command) == 0 {
		logger.Info("report command not configured, skipping", "results_dir", resultsDir)
		return nil
	}

	info, err := os.Stat(resultsDir)
	if err != nil {
		return fmt.Errorf("results directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("results directory %s is not a directory", resultsDir)
	}

	if b.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}

	args := append(append([]string(nil), b.Command[1:]...), resultsDir)
	cmd := exec.CommandContext(ctx, b.Command[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Bounds the wait for output pipes held open by orphaned children.
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	logger.Info("report command started", "command", b.Command[0], "results_dir", resultsDir)

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", b.Timeout, err)
		}
		return fmt.Errorf("report command %s: %w: %s", b.Command[0], err, tail(stderr.String(), 2048))
	}

	logger.Info("report command finished",
		"duration_ms", time.Since(start).Milliseconds(),
		"output", tail(stdout.String(), 2048),
	)
	return nil
}

// tail returns at most the last n bytes of s, trimmed.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return "..." + s[len(s)-n:]
	}
	return s
}
