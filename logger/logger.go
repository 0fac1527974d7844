// Package logger is the structured logging facade used across the module.
// Fields are passed as a map so call sites stay independent of zap.
package logger

type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

type NoopLogger struct{}

func (NoopLogger) Debug(string, map[string]any) {}
func (NoopLogger) Info(string, map[string]any)  {}
func (NoopLogger) Warn(string, map[string]any)  {}
func (NoopLogger) Error(string, map[string]any) {}

// secretKeys are field names whose values are never written out.
var secretKeys = map[string]struct{}{
	"api_key":             {},
	"apiKey":              {},
	"seed":                {},
	"wallet_private_seed": {},
}

const redacted = "[REDACTED]"
