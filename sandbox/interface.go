package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"time"
)

var (
	// ErrUnsupportedLanguage is returned for a language outside the closed set
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrWorkspaceCreate is returned when a job directory cannot be created or written
	ErrWorkspaceCreate = errors.New("workspace create failed")
	// ErrRunnerInternal marks infrastructure failures: the process could not be
	// spawned or its working directory vanished.
	ErrRunnerInternal = errors.New("runner internal error")
)

// SpawnError reports that a process could not be started at all. It matches
// both ErrRunnerInternal and the underlying cause with errors.Is.
type SpawnError struct {
	Binary string
	Err    error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn %s: %v", e.Binary, e.Err)
}

func (e *SpawnError) Unwrap() []error {
	return []error{ErrRunnerInternal, e.Err}
}

// BinaryUnavailable reports whether the binary is missing or not executable
func (e *SpawnError) BinaryUnavailable() bool {
	return errors.Is(e.Err, exec.ErrNotFound) ||
		errors.Is(e.Err, fs.ErrNotExist) ||
		errors.Is(e.Err, fs.ErrPermission)
}

// File permission constants
const (
	DirPermission  = 0o755
	FilePermission = 0o644
)

// Strategy runs a built command against a workspace. One implementation is
// chosen at startup and shared by every job.
type Strategy interface {
	// Name identifies the strategy in logs and health output
	Name() string
	// Toolchain is the binary naming BuildCommand must use for this strategy
	Toolchain() Toolchain
	// MissingToolchainMessage is shown to the user for KindToolchainMissing
	MissingToolchainMessage() string
	// Execute runs cmd in ws and classifies the result. Errors are reserved
	// for infrastructure failures.
	Execute(ctx context.Context, ws *Workspace, cmd Command) (Outcome, error)
}

// ToolchainChecker is implemented by strategies that can check their toolchain at
// startup. The result is informational only.
type ToolchainChecker interface {
	CheckToolchain(ctx context.Context) bool
}

// Invocation is a process to spawn
type Invocation struct {
	Args []string
	Dir  string
	Env  []string
}

// CommandRunner spawns a process with a wall-clock limit
type CommandRunner interface {
	Run(ctx context.Context, inv Invocation, timeout time.Duration) (Outcome, error)
}
