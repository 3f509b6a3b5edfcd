package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpawnError(t *testing.T) {
	tests := []struct {
		name        string
		cause       error
		unavailable bool
	}{
		{"NotFound", &exec.Error{Name: "g++", Err: exec.ErrNotFound}, true},
		{"NotExist", &fs.PathError{Op: "fork/exec", Path: "/usr/bin/docker", Err: fs.ErrNotExist}, true},
		{"Permission", &fs.PathError{Op: "fork/exec", Path: "/usr/bin/docker", Err: fs.ErrPermission}, true},
		{"Other", errors.New("resource temporarily unavailable"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", &SpawnError{Binary: "docker", Err: tt.cause})

			assert.ErrorIs(t, err, ErrRunnerInternal)
			assert.ErrorIs(t, err, tt.cause)

			var spawnErr *SpawnError
			assert.True(t, errors.As(err, &spawnErr))
			assert.Equal(t, tt.unavailable, spawnErr.BinaryUnavailable())
			assert.Contains(t, spawnErr.Error(), "spawn docker")
		})
	}
}

func TestPermissionConstants(t *testing.T) {
	assert.Equal(t, 0o755, DirPermission)
	assert.Equal(t, 0o644, FilePermission)
}
