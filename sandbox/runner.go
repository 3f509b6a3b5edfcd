package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"
)

// DefaultKillGrace is used when no positive grace period is configured
const DefaultKillGrace = 500 * time.Millisecond

// errOutputLimit is the cancellation cause used when a stream exceeds its cap
var errOutputLimit = errors.New("output limit exceeded")

// ProcessRunner implements CommandRunner with os/exec. The child runs in its
// own process group so a timeout takes down every descendant with it.
type ProcessRunner struct {
	logger         *zap.Logger
	killGrace      time.Duration
	maxOutputBytes int64
}

// ProcessRunnerOption defines a functional option for ProcessRunner
type ProcessRunnerOption func(*ProcessRunner)

// WithOutputLimit caps how many bytes of each stream are kept. A process
// that writes more is killed. Non-positive values keep the default.
func WithOutputLimit(maxBytes int64) ProcessRunnerOption {
	return func(r *ProcessRunner) {
		if maxBytes > 0 {
			r.maxOutputBytes = maxBytes
		}
	}
}

// NewProcessRunner creates a runner. killGrace bounds how long Run waits for
// output pipes once the process group has been killed.
func NewProcessRunner(logger *zap.Logger, killGrace time.Duration, opts ...ProcessRunnerOption) *ProcessRunner {
	if killGrace <= 0 {
		killGrace = DefaultKillGrace
	}
	runner := &ProcessRunner{
		logger:         logger,
		killGrace:      killGrace,
		maxOutputBytes: DefaultMaxOutputBytes,
	}

	for _, opt := range opts {
		opt(runner)
	}

	return runner
}

// Run executes inv and waits for it or for timeout, whichever comes first
func (r *ProcessRunner) Run(ctx context.Context, inv Invocation, timeout time.Duration) (Outcome, error) {
	if len(inv.Args) == 0 {
		return Outcome{}, fmt.Errorf("%w: no command provided", ErrRunnerInternal)
	}

	if info, err := os.Stat(inv.Dir); err != nil || !info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is not a directory", inv.Dir)
		}
		return Outcome{}, fmt.Errorf("%w: working directory: %w", ErrRunnerInternal, err)
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	runCtx, stop := context.WithCancelCause(ctxWithTimeout)
	defer stop(nil)

	cmd := exec.CommandContext(runCtx, inv.Args[0], inv.Args[1:]...) //nolint:gosec // running submitted code is the point
	cmd.Dir = inv.Dir
	if len(inv.Env) > 0 {
		cmd.Env = append(os.Environ(), inv.Env...)
	}
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		return killProcessGroup(cmd)
	}
	cmd.WaitDelay = r.killGrace

	onExceed := func() { stop(errOutputLimit) }
	stdoutBuf := newLimitedBuffer(r.maxOutputBytes, onExceed)
	stderrBuf := newLimitedBuffer(r.maxOutputBytes, onExceed)
	cmd.Stdout = stdoutBuf
	cmd.Stderr = stderrBuf

	started := time.Now()
	err := cmd.Run()
	duration := time.Since(started)

	// Reap anything the program left running in the background
	if cmd.Process != nil {
		if killErr := killProcessGroup(cmd); killErr != nil {
			r.logger.Debug("process group cleanup", zap.Int("pid", cmd.Process.Pid), zap.Error(killErr))
		}
	}

	outcome := Outcome{
		Stdout: stdoutBuf.String(),
		Stderr: stderrBuf.String(),
	}

	if errors.Is(context.Cause(runCtx), errOutputLimit) {
		r.logger.Debug("process exceeded output limit",
			zap.Strings("args", inv.Args),
			zap.Int64("max_output_bytes", r.maxOutputBytes),
			zap.Duration("duration", duration))
		outcome.OutputTruncated = true
		outcome.Detail = "output limit exceeded"
		return outcome, nil
	}

	if errors.Is(ctxWithTimeout.Err(), context.DeadlineExceeded) {
		r.logger.Debug("process timed out",
			zap.Strings("args", inv.Args),
			zap.Duration("timeout", timeout),
			zap.Duration("duration", duration))
		outcome.TimedOut = true
		outcome.Detail = "execution timed out"
		return outcome, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// exec.ErrWaitDelay means the process exited but a descendant kept
			// the pipes open; the exit status is still valid.
			if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil {
				outcome.ExitCode = exitCode(cmd.ProcessState.ExitCode())
				outcome.Detail = cmd.ProcessState.String()
				return outcome, nil
			}
			return Outcome{}, &SpawnError{Binary: inv.Args[0], Err: err}
		}
		outcome.ExitCode = exitCode(exitErr.ExitCode())
		outcome.Detail = exitErr.Error()
	} else {
		outcome.ExitCode = exitCode(0)
	}

	r.logger.Debug("process finished",
		zap.Strings("args", inv.Args),
		zap.Int("exit_code", *outcome.ExitCode),
		zap.Duration("duration", duration))

	return outcome, nil
}
