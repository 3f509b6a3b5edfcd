package sandbox

import (
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func requireBinary(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
}

func shell(script string) []string {
	return []string{"sh", "-c", script}
}

func TestProcessRunner(t *testing.T) {
	requireBinary(t, "sh")
	runner := NewProcessRunner(zaptest.NewLogger(t), 200*time.Millisecond)
	ctx := context.Background()

	t.Run("CapturesStreamsSeparately", func(t *testing.T) {
		outcome, err := runner.Run(ctx, Invocation{Args: shell("echo out; echo err 1>&2"), Dir: t.TempDir()}, 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, "out\n", outcome.Stdout)
		assert.Equal(t, "err\n", outcome.Stderr)
		require.NotNil(t, outcome.ExitCode)
		assert.Equal(t, 0, *outcome.ExitCode)
		assert.Equal(t, KindSuccess, outcome.Kind())
	})

	t.Run("NonZeroExitIsNotAnError", func(t *testing.T) {
		outcome, err := runner.Run(ctx, Invocation{Args: shell("exit 3"), Dir: t.TempDir()}, 5*time.Second)
		require.NoError(t, err)
		require.NotNil(t, outcome.ExitCode)
		assert.Equal(t, 3, *outcome.ExitCode)
		assert.Equal(t, "exit status 3", outcome.Detail)
		assert.Equal(t, KindExecutionFailure, outcome.Kind())
	})

	t.Run("RunsInWorkingDirectory", func(t *testing.T) {
		dir := t.TempDir()
		outcome, err := runner.Run(ctx, Invocation{Args: shell("pwd"), Dir: dir}, 5*time.Second)
		require.NoError(t, err)

		want, err := filepath.EvalSymlinks(dir)
		require.NoError(t, err)
		got, err := filepath.EvalSymlinks(strings.TrimSpace(outcome.Stdout))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("PassesEnvironment", func(t *testing.T) {
		outcome, err := runner.Run(ctx, Invocation{Args: shell("echo $RUNBOX_TEST"), Dir: t.TempDir(), Env: []string{"RUNBOX_TEST=yes"}}, 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, "yes\n", outcome.Stdout)
	})

	t.Run("Timeout", func(t *testing.T) {
		started := time.Now()
		outcome, err := runner.Run(ctx, Invocation{Args: shell("sleep 10"), Dir: t.TempDir()}, 200*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, outcome.TimedOut)
		assert.Nil(t, outcome.ExitCode)
		assert.Equal(t, KindTimeout, outcome.Kind())
		assert.Less(t, time.Since(started), 3*time.Second)
	})

	t.Run("OutputUnderLimitIsKept", func(t *testing.T) {
		limited := NewProcessRunner(zaptest.NewLogger(t), 200*time.Millisecond, WithOutputLimit(16))
		outcome, err := limited.Run(ctx, Invocation{Args: shell("printf 0123456789abcdef"), Dir: t.TempDir()}, 5*time.Second)
		require.NoError(t, err)
		assert.False(t, outcome.OutputTruncated)
		assert.Equal(t, "0123456789abcdef", outcome.Stdout)
		assert.Equal(t, KindSuccess, outcome.Kind())
	})

	t.Run("EndlessOutputIsCappedAndKilled", func(t *testing.T) {
		requireBinary(t, "yes")
		const limit = 64 << 10
		limited := NewProcessRunner(zaptest.NewLogger(t), 200*time.Millisecond, WithOutputLimit(limit))
		line := strings.Repeat("x", 95)

		started := time.Now()
		outcome, err := limited.Run(ctx, Invocation{Args: shell("yes " + line), Dir: t.TempDir()}, 2*time.Second)
		require.NoError(t, err)

		assert.True(t, outcome.OutputTruncated)
		assert.False(t, outcome.TimedOut)
		assert.Nil(t, outcome.ExitCode)
		assert.Len(t, outcome.Stdout, limit)
		assert.Equal(t, "output limit exceeded", outcome.Detail)
		assert.Equal(t, KindExecutionFailure, outcome.Kind())
		assert.Less(t, time.Since(started), 2*time.Second)
	})

	t.Run("StderrIsCappedToo", func(t *testing.T) {
		requireBinary(t, "yes")
		limited := NewProcessRunner(zaptest.NewLogger(t), 200*time.Millisecond, WithOutputLimit(1024))

		outcome, err := limited.Run(ctx, Invocation{Args: shell("yes err 1>&2"), Dir: t.TempDir()}, 2*time.Second)
		require.NoError(t, err)
		assert.True(t, outcome.OutputTruncated)
		assert.Len(t, outcome.Stderr, 1024)
		assert.Empty(t, outcome.Stdout)
	})

	t.Run("MissingBinary", func(t *testing.T) {
		_, err := runner.Run(ctx, Invocation{Args: []string{"runbox-no-such-binary"}, Dir: t.TempDir()}, time.Second)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRunnerInternal)
		assert.ErrorIs(t, err, exec.ErrNotFound)

		var spawnErr *SpawnError
		require.True(t, errors.As(err, &spawnErr))
		assert.True(t, spawnErr.BinaryUnavailable())
		assert.Equal(t, "runbox-no-such-binary", spawnErr.Binary)
	})

	t.Run("MissingWorkingDirectory", func(t *testing.T) {
		_, err := runner.Run(ctx, Invocation{Args: shell("true"), Dir: filepath.Join(t.TempDir(), "gone")}, time.Second)
		require.ErrorIs(t, err, ErrRunnerInternal)

		var spawnErr *SpawnError
		assert.False(t, errors.As(err, &spawnErr))
	})

	t.Run("NoArgs", func(t *testing.T) {
		_, err := runner.Run(ctx, Invocation{Dir: t.TempDir()}, time.Second)
		require.ErrorIs(t, err, ErrRunnerInternal)
	})
}

func TestNewProcessRunnerDefaults(t *testing.T) {
	runner := NewProcessRunner(zaptest.NewLogger(t), 0)
	assert.Equal(t, DefaultKillGrace, runner.killGrace)
	assert.Equal(t, int64(DefaultMaxOutputBytes), runner.maxOutputBytes)

	runner = NewProcessRunner(zaptest.NewLogger(t), 0, WithOutputLimit(0))
	assert.Equal(t, int64(DefaultMaxOutputBytes), runner.maxOutputBytes)

	runner = NewProcessRunner(zaptest.NewLogger(t), 0, WithOutputLimit(4096))
	assert.Equal(t, int64(4096), runner.maxOutputBytes)
}
