package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"
)

// LocalRunner runs commands directly on the host.
type LocalRunner struct {
	logger zerolog.Logger
}

// NewLocalRunner creates a runner executing commands on the local host.
func NewLocalRunner(logger zerolog.Logger) *LocalRunner {
	return &LocalRunner{logger: logger}
}

// Run executes the command, discarding its output.
func (lr *LocalRunner) Run(ctx context.Context, name string, args ...string) error {
	lr.logger.Debug().Str("command", name).Strs("args", args).Msg("running command")

	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("run %s: %w: %s", name, err, stderr.String())
		}
		return fmt.Errorf("run %s: %w", name, err)
	}
	return nil
}

// Output executes the command and returns its combined stdout and stderr.
func (lr *LocalRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	lr.logger.Debug().Str("command", name).Strs("args", args).Msg("running command")

	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("run %s: %w", name, err)
	}
	return out, nil
}
