// Package httpserver is the HTTP surface of the execution service.
//
// Routes:
//
//	POST /execute  {"language": "cpp"|"python", "code": "..."} -> {"output": "..."}
//	GET  /healthz  {"status": "ok", "mode": "<strategy>"}
//
// When MCP is enabled the streamable MCP transport is mounted at mcp.path on
// the same router. CORS is open to any origin. Every request gets a request
// id and an access log line.
package httpserver
