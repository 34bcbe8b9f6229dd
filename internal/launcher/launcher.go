// Package launcher runs a job's shell command as a child process and
// captures its outcome: exit code, bounded stdout/stderr, and whether it
// was killed for running past its timeout.
package launcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime/debug"
	"time"

	"github.com/maumercado/queuectl/internal/logger"
)

// maxCapturedOutput bounds how much of a job's stdout/stderr is retained.
// Commands that chatter past this are still run to completion; only the
// captured tail is truncated, so a runaway command can't exhaust memory.
const maxCapturedOutput = 4096

// Result is the outcome of running a job's command.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
}

// Run executes command through the shell, enforcing timeout, and returns
// its outcome. A non-zero exit code or a timeout is reported in Result, not
// as an error: err is reserved for failures to even start the process (the
// shell binary missing, fork failure) or an internal panic in this package.
func Run(ctx context.Context, command string, timeout time.Duration) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("launcher panicked running job command")
			err = fmt.Errorf("launcher panicked: %v", r)
		}
	}()

	runCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)

	var stdout, stderr boundedBuffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	result = Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if runErr == nil {
		result.ExitCode = 0
		return result, nil
	}

	if runCtx.Err() != nil {
		result.TimedOut = errors.Is(runCtx.Err(), context.DeadlineExceeded)
		result.ExitCode = -1
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}

	// The command never started (binary missing, permission denied, etc.):
	// this is an infrastructure failure, not a job failure.
	return Result{}, fmt.Errorf("start job command: %w", runErr)
}

// boundedBuffer is an io.Writer that keeps only the last maxCapturedOutput
// bytes written to it, so a chatty command's output doesn't grow without
// bound while it runs.
type boundedBuffer struct {
	buf bytes.Buffer
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	b.buf.Write(p)
	if b.buf.Len() > maxCapturedOutput {
		trimmed := b.buf.Bytes()[b.buf.Len()-maxCapturedOutput:]
		b.buf = *bytes.NewBuffer(append([]byte(nil), trimmed...))
	}
	return n, nil
}

func (b *boundedBuffer) String() string {
	return b.buf.String()
}
