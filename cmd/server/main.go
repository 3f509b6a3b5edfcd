package main

import (
	"context"

	"github.com/spf13/afero"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/runbox/config"
	"github.com/isdmx/runbox/httpserver"
	"github.com/isdmx/runbox/job"
	"github.com/isdmx/runbox/logger"
	"github.com/isdmx/runbox/mcpserver"
	"github.com/isdmx/runbox/sandbox"
)

func main() {
	fx.New(options()).Run()
}

func options() fx.Option {
	return fx.Options(
		fx.Provide(
			// Config
			config.New,

			// Logger with configuration
			logger.NewFromConfig,

			// Workspaces live on the real filesystem
			func() afero.Fs { return afero.NewOsFs() },
			sandbox.NewWorkspaceManagerFromConfig,

			// Execution strategy, fixed for the process lifetime
			sandbox.NewStrategy,

			newCoordinator,
			func(c *job.Coordinator) httpserver.Executor { return c },
			func(c *job.Coordinator) mcpserver.Executor { return c },

			mcpserver.New,
			newHTTPServer,
		),

		fx.Invoke(registerRuntimeCheck, registerSweeper, registerTransport),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)
}

func newCoordinator(logger *zap.Logger, cfg *config.Config, workspaces *sandbox.WorkspaceManager, strategy sandbox.Strategy) *job.Coordinator {
	return job.New(logger, cfg, workspaces, strategy)
}

func newHTTPServer(cfg *config.Config, logger *zap.Logger, executor httpserver.Executor, mcp *mcpserver.MCPServer) *httpserver.Server {
	var opts []httpserver.Option
	if cfg.MCP.Enabled {
		opts = append(opts, httpserver.WithMCPHandler(mcp.Handler()))
	}
	return httpserver.New(cfg, logger, executor, opts...)
}

// registerRuntimeCheck logs at startup whether the strategy's toolchain
// answers. A missing toolchain does not stop the service.
func registerRuntimeCheck(lc fx.Lifecycle, strategy sandbox.Strategy) {
	checker, ok := strategy.(sandbox.ToolchainChecker)
	if !ok {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			checker.CheckToolchain(ctx)
			return nil
		},
	})
}

func registerSweeper(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger, workspaces *sandbox.WorkspaceManager) {
	if cfg.GetSweepInterval() <= 0 {
		return
	}
	sweeper := sandbox.NewSweeper(logger, workspaces, cfg.GetSweepInterval(), cfg.GetSweepMaxAge())
	lc.Append(fx.StartStopHook(sweeper.Start, sweeper.Stop))
}

// registerTransport starts either the HTTP server or the MCP stdio loop
func registerTransport(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *config.Config,
	logger *zap.Logger,
	httpServer *httpserver.Server,
	mcp *mcpserver.MCPServer,
) {
	switch cfg.Server.Transport {
	case "stdio":
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					if err := mcp.ServeStdio(); err != nil {
						logger.Error("MCP stdio server stopped", zap.Error(err))
					}
					_ = shutdowner.Shutdown()
				}()
				return nil
			},
		})
	default:
		lc.Append(fx.Hook{
			OnStart: httpServer.Start,
			OnStop:  httpServer.Stop,
		})
	}
}
