//go:build linux

package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// processAlive treats zombies as dead: they hold no resources and may never
// be reaped when the test runs as a container's init child.
func processAlive(pid int) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return false
	}
	fields := strings.Fields(string(data[strings.LastIndexByte(string(data), ')')+1:]))
	return len(fields) > 0 && fields[0] != "Z"
}

func readPID(t *testing.T, dir string) int {
	t.Helper()
	var data []byte
	require.Eventually(t, func() bool {
		var err error
		data, err = os.ReadFile(filepath.Join(dir, "child.pid"))
		return err == nil && len(strings.TrimSpace(string(data))) > 0
	}, 2*time.Second, 10*time.Millisecond)

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	return pid
}

func TestProcessRunnerKillsProcessTree(t *testing.T) {
	requireBinary(t, "sh")
	requireBinary(t, "sleep")
	runner := NewProcessRunner(zaptest.NewLogger(t), 200*time.Millisecond)

	t.Run("OnTimeout", func(t *testing.T) {
		dir := t.TempDir()
		outcome, err := runner.Run(context.Background(), Invocation{
			Args: shell("sleep 30 & echo $! > child.pid; wait"),
			Dir:  dir,
		}, 300*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, outcome.TimedOut)

		pid := readPID(t, dir)
		assert.Eventually(t, func() bool { return !processAlive(pid) }, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("AfterNormalExit", func(t *testing.T) {
		dir := t.TempDir()
		outcome, err := runner.Run(context.Background(), Invocation{
			Args: shell("sleep 30 >/dev/null 2>&1 & echo $! > child.pid"),
			Dir:  dir,
		}, 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, KindSuccess, outcome.Kind())

		pid := readPID(t, dir)
		assert.Eventually(t, func() bool { return !processAlive(pid) }, 2*time.Second, 20*time.Millisecond)
	})

	t.Run("DescendantHoldingPipes", func(t *testing.T) {
		dir := t.TempDir()
		started := time.Now()
		outcome, err := runner.Run(context.Background(), Invocation{
			Args: shell("sleep 30 & echo $! > child.pid; echo done"),
			Dir:  dir,
		}, 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, KindSuccess, outcome.Kind())
		assert.Equal(t, "done\n", outcome.Stdout)
		assert.Less(t, time.Since(started), 3*time.Second)

		pid := readPID(t, dir)
		assert.Eventually(t, func() bool { return !processAlive(pid) }, 2*time.Second, 20*time.Millisecond)
	})
}
