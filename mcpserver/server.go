package mcpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/runbox/config"
	"github.com/isdmx/runbox/job"
	"github.com/isdmx/runbox/sandbox"
)

const (
	serverName    = "runbox-executor"
	serverVersion = "1.0.0"

	// ToolName is the name of the single tool this server registers
	ToolName = "execute_code"

	internalErrorText = "Internal Server Error"
)

// Executor runs a validated job. *job.Coordinator implements it.
type Executor interface {
	Execute(ctx context.Context, req job.Request) (job.Result, error)
}

// MCPServer represents the MCP server
type MCPServer struct {
	config    *config.Config
	logger    *zap.Logger
	executor  Executor
	mcpServer *server.MCPServer
}

// New creates a new MCPServer
func New(cfg *config.Config, logger *zap.Logger, executor Executor) *MCPServer {
	s := &MCPServer{
		config:   cfg,
		logger:   logger.Named("mcp"),
		executor: executor,
	}

	s.mcpServer = server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false))
	s.registerExecuteCodeTool()

	return s
}

func (s *MCPServer) registerExecuteCodeTool() {
	languages := make([]string, 0, len(sandbox.SupportedLanguages()))
	for _, language := range sandbox.SupportedLanguages() {
		languages = append(languages, string(language))
	}

	tool := mcp.NewTool(ToolName,
		mcp.WithDescription("Compile and run a single-file program in a fresh sandbox and return its output"),
		mcp.WithString("code",
			mcp.Required(),
			mcp.Description("Complete source code of the program"),
		),
		mcp.WithString("language",
			mcp.Required(),
			mcp.Description("Source language"),
			mcp.Enum(languages...),
		),
	)

	s.mcpServer.AddTool(tool, s.handleExecuteCode)
}

// handleExecuteCode maps coordinator results onto tool results. Client and
// server errors are reported as tool errors rather than protocol errors.
func (s *MCPServer) handleExecuteCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := job.Request{
		Code:     request.GetString("code", ""),
		Language: request.GetString("language", ""),
	}

	result, err := s.executor.Execute(ctx, req)
	if err != nil {
		var validationErr *job.ValidationError
		if errors.As(err, &validationErr) {
			s.logger.Info("tool call rejected", zap.String("reason", validationErr.Message))
			return mcp.NewToolResultError(validationErr.Message), nil
		}
		s.logger.Error("tool call failed", zap.Error(err))
		return mcp.NewToolResultError(internalErrorText), nil
	}

	s.logger.Info("tool call completed",
		zap.String("job_id", result.JobID),
		zap.Stringer("kind", result.Kind))

	return mcp.NewToolResultText(result.Output), nil
}

// Handler returns the streamable HTTP transport for mounting on a router
func (s *MCPServer) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer, server.WithEndpointPath(s.config.MCP.Path))
}

// ServeStdio serves the MCP server on stdin/stdout until EOF
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// GetMCPServer returns the underlying MCP server
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
