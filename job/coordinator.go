package job

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isdmx/runbox/config"
	"github.com/isdmx/runbox/sandbox"
)

// Request is the client payload
type Request struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// Result is what the client gets back for a request that passed validation
type Result struct {
	JobID    string
	Output   string
	Kind     sandbox.Kind
	Duration time.Duration
}

// Job is one request's state while it runs. It never outlives Execute.
type Job struct {
	ID            string
	Language      sandbox.Language
	SourceCode    string
	WorkspacePath string
}

// WorkspaceAllocator is the part of sandbox.WorkspaceManager the coordinator uses
type WorkspaceAllocator interface {
	Acquire(token string) (*sandbox.Workspace, error)
	Write(ws *sandbox.Workspace, fileName, content string) error
	Release(ws *sandbox.Workspace)
}

// Coordinator runs jobs end to end
type Coordinator struct {
	logger     *zap.Logger
	workspaces WorkspaceAllocator
	strategy   sandbox.Strategy
	timeout    time.Duration
	newID      func() string
}

// Option defines a functional option for Coordinator
type Option func(*Coordinator)

// WithWorkspaces replaces the workspace allocator
func WithWorkspaces(workspaces WorkspaceAllocator) Option {
	return func(c *Coordinator) {
		c.workspaces = workspaces
	}
}

// WithIDGenerator replaces the job token generator
func WithIDGenerator(newID func() string) Option {
	return func(c *Coordinator) {
		c.newID = newID
	}
}

// New creates a Coordinator
func New(logger *zap.Logger, cfg *config.Config, workspaces *sandbox.WorkspaceManager, strategy sandbox.Strategy, opts ...Option) *Coordinator {
	c := &Coordinator{
		logger:     logger,
		workspaces: workspaces,
		strategy:   strategy,
		timeout:    cfg.GetTimeout(),
		newID:      uuid.NewString,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// StrategyName reports the execution strategy chosen at startup
func (c *Coordinator) StrategyName() string {
	return c.strategy.Name()
}

// Validate checks a request without running it
func Validate(req Request) (sandbox.Language, error) {
	if req.Code == "" {
		return "", newValidationError(ErrNoCodeProvided)
	}

	language, err := sandbox.ParseLanguage(req.Language)
	if err != nil {
		return "", newValidationError(fmt.Errorf("%w: %q", ErrUnsupportedLanguage, req.Language))
	}

	return language, nil
}

// Execute validates req, runs it and renders the output. A *ValidationError
// is returned for bad input and an error wrapping ErrInternal for
// infrastructure failures; program failures are part of a normal Result.
func (c *Coordinator) Execute(ctx context.Context, req Request) (result Result, err error) {
	language, err := Validate(req)
	if err != nil {
		return Result{}, err
	}

	job := &Job{
		ID:         c.newID(),
		Language:   language,
		SourceCode: req.Code,
	}
	logger := c.logger.With(zap.String("job_id", job.ID), zap.String("language", string(job.Language)))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked", zap.Any("panic", r), zap.Stack("stack"))
			result = Result{}
			err = fmt.Errorf("%w: panic: %v", ErrInternal, r)
		}
	}()

	// Only the timeout cancels a job, not the client going away
	ctx = context.WithoutCancel(ctx)

	ws, err := c.workspaces.Acquire(job.ID)
	if err != nil {
		logger.Error("failed to acquire workspace", zap.Error(err))
		return Result{}, fmt.Errorf("%w: %w", ErrInternal, err)
	}
	defer c.workspaces.Release(ws)
	job.WorkspacePath = ws.Path

	cmd, err := sandbox.BuildCommand(job.Language, c.strategy.Toolchain())
	if err != nil {
		logger.Error("failed to build command", zap.Error(err))
		return Result{}, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	if err := c.workspaces.Write(ws, cmd.FileName, job.SourceCode); err != nil {
		logger.Error("failed to write source", zap.String("path", job.WorkspacePath), zap.Error(err))
		return Result{}, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	started := time.Now()
	outcome, err := c.strategy.Execute(ctx, ws, cmd)
	duration := time.Since(started)
	if err != nil {
		logger.Error("execution failed",
			zap.String("strategy", c.strategy.Name()),
			zap.Duration("duration", duration),
			zap.Error(err))
		return Result{}, fmt.Errorf("%w: %w", ErrInternal, err)
	}

	kind := outcome.Kind()
	fields := []zap.Field{
		zap.String("strategy", c.strategy.Name()),
		zap.Stringer("kind", kind),
		zap.Duration("duration", duration),
		zap.Int("stdout_len", len(outcome.Stdout)),
		zap.Int("stderr_len", len(outcome.Stderr)),
	}
	if outcome.ExitCode != nil {
		fields = append(fields, zap.Int("exit_code", *outcome.ExitCode))
	}
	if kind == sandbox.KindToolchainMissing {
		logger.Warn("toolchain missing", append(fields, zap.String("detail", outcome.Detail))...)
	} else {
		logger.Info("job finished", fields...)
	}

	return Result{
		JobID:    job.ID,
		Output:   Render(outcome, c.strategy.MissingToolchainMessage(), c.timeout),
		Kind:     kind,
		Duration: duration,
	}, nil
}
