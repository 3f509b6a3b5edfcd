package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/isdmx/runbox/config"
	"github.com/isdmx/runbox/httpserver"
	"github.com/isdmx/runbox/job"
	"github.com/isdmx/runbox/logger"
	"github.com/isdmx/runbox/mcpserver"
	"github.com/isdmx/runbox/sandbox"
)

type stack struct {
	cfg         *config.Config
	coordinator *job.Coordinator
	mcp         *mcpserver.MCPServer
	server      *httptest.Server
}

// newStack wires config, logger, sandbox, job and both surfaces the way
// cmd/server does, using the direct strategy.
func newStack(t *testing.T) *stack {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("direct strategy tests use a POSIX shell")
	}

	root := t.TempDir()
	data, err := yaml.Marshal(map[string]any{
		"sandbox": map[string]any{
			"mode":           "direct",
			"timeout_ms":     5000,
			"workspace_root": filepath.Join(root, "workspaces"),
		},
		"mcp":     map[string]any{"enabled": true, "path": "/mcp"},
		"logging": map[string]any{"mode": "development", "level": "debug"},
	})
	require.NoError(t, err)
	path := filepath.Join(root, "config.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := config.NewFromFile(path)
	require.NoError(t, err)

	log, err := logger.NewFromConfig(cfg)
	require.NoError(t, err)

	workspaces, err := sandbox.NewWorkspaceManagerFromConfig(log, afero.NewOsFs(), cfg)
	require.NoError(t, err)

	strategy, err := sandbox.NewStrategy(log, cfg)
	require.NoError(t, err)

	coordinator := job.New(log, cfg, workspaces, strategy)
	mcp := mcpserver.New(cfg, log, coordinator)
	server := httptest.NewServer(httpserver.New(cfg, log, coordinator, httpserver.WithMCPHandler(mcp.Handler())).Handler())
	t.Cleanup(server.Close)

	return &stack{cfg: cfg, coordinator: coordinator, mcp: mcp, server: server}
}

func (s *stack) execute(t *testing.T, language, code string) (int, string) {
	t.Helper()
	body, err := json.Marshal(job.Request{Language: language, Code: code})
	require.NoError(t, err)

	resp, err := http.Post(s.server.URL+"/execute", "application/json", strings.NewReader(string(body)))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out struct {
		Output string `json:"output"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out.Output
}

func requireTool(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available", name)
	}
}

func TestIntegrationExecute(t *testing.T) {
	s := newStack(t)

	t.Run("Validation", func(t *testing.T) {
		status, output := s.execute(t, "python", "")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "No code provided.", output)

		status, output = s.execute(t, "java", "class Main {}")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Unsupported language.", output)
	})

	t.Run("PythonHello", func(t *testing.T) {
		requireTool(t, "python3")
		status, output := s.execute(t, "python", `print("Hello from Python!")`)
		assert.Equal(t, http.StatusOK, status)
		assert.Contains(t, output, "Hello from Python!")
		assert.NotContains(t, output, "Debug:")
	})

	t.Run("CPPCompileError", func(t *testing.T) {
		requireTool(t, "g++")
		status, output := s.execute(t, "cpp", "#include <iostream>\nint main() { std::cout << 1 << std::endl return 0; }")
		assert.Equal(t, http.StatusOK, status)
		assert.Contains(t, output, "Error:")
		assert.Contains(t, output, "error")
	})

	t.Run("CPPTimeout", func(t *testing.T) {
		requireTool(t, "g++")
		status, output := s.execute(t, "cpp", "int main() { while (true) {} }")
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "Error: Execution Timed Out (Limit: 5s)", output)
	})

	t.Run("WorkspacesRemoved", func(t *testing.T) {
		entries, err := os.ReadDir(s.cfg.Sandbox.WorkspaceRoot)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestIntegrationHealthz(t *testing.T) {
	s := newStack(t)

	resp, err := http.Get(s.server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "direct", body["mode"])
}

func TestIntegrationMCPToolCall(t *testing.T) {
	requireTool(t, "python3")
	s := newStack(t)
	ctx := context.Background()

	s.mcp.GetMCPServer().HandleMessage(ctx, json.RawMessage(
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test","version":"1.0.0"}}}`))

	response := s.mcp.GetMCPServer().HandleMessage(ctx, json.RawMessage(
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"execute_code","arguments":{"language":"python","code":"print(\"Hello from Python!\")"}}}`))

	data, err := json.Marshal(response)
	require.NoError(t, err)
	assert.Contains(t, string(data), `Hello from Python!\n`)
	assert.NotContains(t, string(data), `"isError":true`)
}
