package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// execTool runs an external binary with a fixed argument list, capturing
// stdout, stderr, exit code and wall-clock duration. Target values are
// passed as discrete argv elements; nothing is ever interpolated into a
// shell string.
//
// A non-zero exit is returned as a RawResult with a nil error - exit-code
// semantics belong to the calling adapter, since several scanners use
// non-zero exits to mean "findings present".
func execTool(ctx context.Context, timeout time.Duration, name string, args ...string) (*RawResult, error) {
	if _, err := exec.LookPath(name); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	raw := &RawResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, name, timeout)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			raw.ExitCode = exitErr.ExitCode()
			return raw, nil
		}
		return nil, fmt.Errorf("run %s: %w", name, err)
	}

	return raw, nil
}
