package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Container runtime exit statuses: 125 is the runtime's own failure (daemon
// down, image missing), 127 is a command not found.
const (
	exitRuntimeFailure  = 125
	exitCommandNotFound = 127
)

const (
	containerRemoveTimeout    = 10 * time.Second
	containerRemoveRetryDelay = time.Second

	// The in-container timeout fires this long after the host timeout, so
	// a container the host could not remove still stops on its own.
	containerSelfKillMargin = 2 * time.Second

	checkTimeout = 5 * time.Second
)

// ContainerStrategy runs each job in a throwaway container with the
// workspace bind-mounted as the working directory.
type ContainerStrategy struct {
	logger           *zap.Logger
	config           *Config
	runtime          containerRuntime
	cmdRunner        CommandRunner
	removeRetryDelay time.Duration
}

// ContainerStrategyOption defines a functional option for ContainerStrategy
type ContainerStrategyOption func(*ContainerStrategy)

// WithContainerCommandRunner sets the CommandRunner for ContainerStrategy
func WithContainerCommandRunner(cmdRunner CommandRunner) ContainerStrategyOption {
	return func(c *ContainerStrategy) {
		c.cmdRunner = cmdRunner
	}
}

// WithContainerRemoveRetryDelay sets the pause before the second rm -f attempt
func WithContainerRemoveRetryDelay(delay time.Duration) ContainerStrategyOption {
	return func(c *ContainerStrategy) {
		c.removeRetryDelay = delay
	}
}

// NewContainerStrategy creates a ContainerStrategy backed by a ProcessRunner unless overridden
func NewContainerStrategy(logger *zap.Logger, config *Config, opts ...ContainerStrategyOption) *ContainerStrategy {
	strategy := &ContainerStrategy{
		logger:           logger,
		config:           config,
		runtime:          runtimeFor(config.Runtime),
		cmdRunner:        NewProcessRunner(logger, config.KillGrace, WithOutputLimit(config.MaxOutputBytes)),
		removeRetryDelay: containerRemoveRetryDelay,
	}

	for _, opt := range opts {
		opt(strategy)
	}

	return strategy
}

// Name implements Strategy
func (c *ContainerStrategy) Name() string {
	return "container:" + c.config.Runtime
}

// Toolchain implements Strategy; the runner image always uses unix naming
func (*ContainerStrategy) Toolchain() Toolchain {
	return ContainerToolchain()
}

// MissingToolchainMessage implements Strategy
func (c *ContainerStrategy) MissingToolchainMessage() string {
	return c.runtime.missingMessage(c.config.Image)
}

// CheckToolchain runs "<runtime> --version" and logs whether the runtime answered.
// It never fails startup.
func (c *ContainerStrategy) CheckToolchain(ctx context.Context) bool {
	args := []string{c.runtime.binary, "--version"}

	outcome, err := c.cmdRunner.Run(ctx, Invocation{Args: args, Dir: os.TempDir()}, checkTimeout)
	if err != nil || outcome.Kind() != KindSuccess {
		fields := []zap.Field{zap.String("runtime", c.runtime.binary), zap.String("image", c.config.Image)}
		if err != nil {
			fields = append(fields, zap.Error(err))
		} else {
			fields = append(fields, zap.String("detail", outcome.Detail), zap.String("stderr", outcome.Stderr))
		}
		c.logger.Warn("container runtime not available; jobs will report a missing toolchain", fields...)
		return false
	}

	c.logger.Info("container runtime available",
		zap.String("runtime", c.runtime.binary),
		zap.String("version", firstLine(outcome.Stdout)))
	return true
}

// Execute runs cmd in a fresh container
func (c *ContainerStrategy) Execute(ctx context.Context, ws *Workspace, cmd Command) (Outcome, error) {
	containerName := "runbox-" + ws.Token
	cmdArgs := c.runArgs(containerName, ws, cmd)

	outcome, err := c.cmdRunner.Run(ctx, Invocation{Args: cmdArgs, Dir: ws.Path}, c.config.Timeout)
	if err != nil {
		var spawnErr *SpawnError
		if errors.As(err, &spawnErr) && spawnErr.BinaryUnavailable() {
			c.logger.Warn("container runtime unavailable",
				zap.String("runtime", c.config.Runtime),
				zap.Error(err))
			return Outcome{ToolchainMissing: true, Detail: err.Error()}, nil
		}
		return Outcome{}, fmt.Errorf("failed to execute container: %w", err)
	}

	if outcome.TimedOut || outcome.OutputTruncated {
		// Killing the client does not stop the container itself
		c.removeContainer(ctx, ws, containerName)
		return outcome, nil
	}

	if c.runtimeReportedMissing(outcome) {
		c.logger.Warn("container runtime reported missing toolchain",
			zap.Int("exit_code", *outcome.ExitCode),
			zap.String("stderr", outcome.Stderr))
		outcome.ToolchainMissing = true
	}

	return outcome, nil
}

// runtimeReportedMissing tells runtime failures apart from a program that
// happens to exit with the same status: a 127 that printed to stdout came
// from the user's program.
func (*ContainerStrategy) runtimeReportedMissing(outcome Outcome) bool {
	if outcome.ExitCode == nil {
		return false
	}
	switch *outcome.ExitCode {
	case exitRuntimeFailure:
		return true
	case exitCommandNotFound:
		return outcome.Stdout == ""
	default:
		return false
	}
}

func (c *ContainerStrategy) runArgs(containerName string, ws *Workspace, cmd Command) []string {
	cmdArgs := []string{
		c.runtime.binary, "run",
		"--name", containerName,
		"--rm",
		"-v", fmt.Sprintf("%s:%s", ws.Path, c.config.MountPath),
		"--workdir", c.config.MountPath,
	}

	// Files created in the bind mount must stay removable by this process
	cmdArgs = append(cmdArgs, c.runtime.userArgs(os.Getuid(), os.Getgid())...)

	if !c.config.NetworkEnabled {
		cmdArgs = append(cmdArgs, "--network", "none")
	}

	cmdArgs = append(cmdArgs, c.config.Image)
	cmdArgs = append(cmdArgs, c.selfKillArgs()...)
	cmdArgs = append(cmdArgs, c.Toolchain().Shell...)
	return append(cmdArgs, cmd.Invocation)
}

// selfKillArgs wraps the job in coreutils timeout inside the container
func (c *ContainerStrategy) selfKillArgs() []string {
	limit := c.config.Timeout + containerSelfKillMargin
	seconds := (limit + time.Second - 1) / time.Second
	return []string{"timeout", "-s", "KILL", fmt.Sprintf("%ds", int64(seconds))}
}

// removeContainer force-removes the job's container. The CLI may have been
// killed before the daemon finished creating it, so a failed attempt is
// retried once after a short pause.
func (c *ContainerStrategy) removeContainer(ctx context.Context, ws *Workspace, containerName string) {
	ctx = context.WithoutCancel(ctx)

	if c.tryRemoveContainer(ctx, ws, containerName) {
		return
	}

	time.Sleep(c.removeRetryDelay)
	if !c.tryRemoveContainer(ctx, ws, containerName) {
		c.logger.Warn("container left behind; it stops at its in-container timeout",
			zap.String("container", containerName))
	}
}

func (c *ContainerStrategy) tryRemoveContainer(ctx context.Context, ws *Workspace, containerName string) bool {
	rmArgs := []string{c.runtime.binary, "rm", "-f", containerName}

	outcome, err := c.cmdRunner.Run(ctx, Invocation{Args: rmArgs, Dir: ws.Path}, containerRemoveTimeout)
	if err != nil {
		c.logger.Warn("failed to remove container", zap.String("container", containerName), zap.Error(err))
		return false
	}
	if outcome.Kind() != KindSuccess {
		c.logger.Warn("failed to remove container",
			zap.String("container", containerName),
			zap.String("stderr", outcome.Stderr))
		return false
	}
	return true
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return line
}
