// Package logging sets up structured slog logging for fuzzidx.
//
// CLI commands log to stderr. With --debug, and always in server mode, JSON
// logs also go to a rotating file under ~/.fuzzidx/logs/. Server mode never
// writes to stdout or stderr, since stdout carries the MCP protocol.
package logging
