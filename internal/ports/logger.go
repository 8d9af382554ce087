package ports

import "context"

// Logger is the minimal structured logging surface used across components.
// Fields are optional key-value maps appended to the message, so any backend
// (standard log, zerolog, zap) can implement it.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...map[string]interface{})
	Info(ctx context.Context, msg string, fields ...map[string]interface{})
	Warn(ctx context.Context, msg string, fields ...map[string]interface{})
	Error(ctx context.Context, err error, msg string, fields ...map[string]interface{})
}
