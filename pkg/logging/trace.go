package logging

import "log/slog"

// EnableTrace is a variable to enable/disable trace logs.
// Default is false to reduce noise.
var EnableTrace = false

// TraceDefault logs to the default logger if EnableTrace is true.
// This allows "super debug" logs on the sampling hot path that are
// skipped cheaply in normal operation.
func TraceDefault(msg string, args ...any) {
	if EnableTrace {
		slog.Debug(msg, args...)
	}
}
