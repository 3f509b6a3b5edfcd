package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// DirectStrategy runs jobs as child processes on the host, relying on the
// host's compiler and interpreter. It gives no isolation beyond the
// workspace directory and is meant for hosts that are themselves a sandbox.
type DirectStrategy struct {
	logger           *zap.Logger
	config           *Config
	cmdRunner        CommandRunner
	missingExitCodes []int
}

// DirectStrategyOption defines a functional option for DirectStrategy
type DirectStrategyOption func(*DirectStrategy)

// WithDirectCommandRunner sets the CommandRunner for DirectStrategy
func WithDirectCommandRunner(cmdRunner CommandRunner) DirectStrategyOption {
	return func(d *DirectStrategy) {
		d.cmdRunner = cmdRunner
	}
}

// WithDirectGOOS selects which OS's command-not-found exit status applies
func WithDirectGOOS(goos string) DirectStrategyOption {
	return func(d *DirectStrategy) {
		d.missingExitCodes = hostMissingExitCodes(goos)
	}
}

// NewDirectStrategy creates a DirectStrategy backed by a ProcessRunner unless overridden
func NewDirectStrategy(logger *zap.Logger, config *Config, opts ...DirectStrategyOption) *DirectStrategy {
	strategy := &DirectStrategy{
		logger:           logger,
		config:           config,
		cmdRunner:        NewProcessRunner(logger, config.KillGrace, WithOutputLimit(config.MaxOutputBytes)),
		missingExitCodes: hostMissingExitCodes(runtime.GOOS),
	}

	for _, opt := range opts {
		opt(strategy)
	}

	return strategy
}

// hostMissingExitCodes returns exit statuses the host shell uses only for
// "command not found". sh's 127 is deliberately absent: its diagnostic is
// returned to the user like any other failure.
func hostMissingExitCodes(goos string) []int {
	if goos == "windows" {
		return []int{9009}
	}
	return nil
}

// Name implements Strategy
func (*DirectStrategy) Name() string {
	return "direct"
}

// Toolchain implements Strategy
func (d *DirectStrategy) Toolchain() Toolchain {
	return d.config.HostToolchain
}

// MissingToolchainMessage implements Strategy
func (d *DirectStrategy) MissingToolchainMessage() string {
	tc := d.config.HostToolchain
	return fmt.Sprintf("SYSTEM ERROR: The host toolchain is not available.\n\n"+
		"Install %s and %s on the server or switch EXECUTION_MODE to container.",
		tc.Compiler, tc.Python)
}

// CheckToolchain runs "--version" against the host compiler and interpreter and logs
// which of them answered. It never fails startup.
func (d *DirectStrategy) CheckToolchain(ctx context.Context) bool {
	tc := d.config.HostToolchain
	available := true

	for _, binary := range []string{tc.Compiler, tc.Python} {
		outcome, err := d.cmdRunner.Run(ctx, Invocation{Args: []string{binary, "--version"}, Dir: os.TempDir()}, checkTimeout)
		if err != nil || outcome.Kind() != KindSuccess {
			available = false
			d.logger.Warn("host toolchain binary not available", zap.String("binary", binary), zap.Error(err))
			continue
		}
		d.logger.Info("host toolchain binary available",
			zap.String("binary", binary),
			zap.String("version", firstLine(outcome.Stdout+outcome.Stderr)))
	}

	return available
}

// Execute runs cmd through the host shell inside the workspace
func (d *DirectStrategy) Execute(ctx context.Context, ws *Workspace, cmd Command) (Outcome, error) {
	args := append(slices.Clone(d.config.HostToolchain.Shell), cmd.Invocation)

	outcome, err := d.cmdRunner.Run(ctx, Invocation{Args: args, Dir: ws.Path}, d.config.Timeout)
	if err != nil {
		var spawnErr *SpawnError
		if errors.As(err, &spawnErr) && spawnErr.BinaryUnavailable() {
			d.logger.Warn("host shell unavailable",
				zap.String("shell", strings.Join(d.config.HostToolchain.Shell, " ")),
				zap.Error(err))
			return Outcome{ToolchainMissing: true, Detail: err.Error()}, nil
		}
		return Outcome{}, fmt.Errorf("failed to execute command: %w", err)
	}

	if !outcome.TimedOut && outcome.ExitCode != nil && slices.Contains(d.missingExitCodes, *outcome.ExitCode) {
		outcome.ToolchainMissing = true
	}

	return outcome, nil
}
