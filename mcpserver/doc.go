// Package mcpserver exposes the execution service as a Model Context
// Protocol tool.
//
// The execute_code tool takes the same language and code arguments as
// POST /execute and returns the same rendered output. The server is either
// mounted on the HTTP router (streamable HTTP transport) or served on stdio,
// depending on server.transport.
//
// Usage:
//
//	server := mcpserver.New(cfg, logger, coordinator)
//	err := server.ServeStdio() // or router.Handle(cfg.MCP.Path, server.Handler())
package mcpserver
