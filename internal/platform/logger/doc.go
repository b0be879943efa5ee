// Package logger configures the process-wide slog logger and carries
// request-scoped loggers through context.Context.
//
// Handlers and services call FromContextOrDefault so that entries written
// while serving a request carry its trace_id.
package logger
