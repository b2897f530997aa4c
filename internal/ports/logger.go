package ports

import "context"

// Fields carries structured key/value context for a log line.
type Fields = map[string]interface{}

// Logger is the structured logger every engine component receives through its
// constructor. Implementations must be safe for concurrent use: the feed,
// health and engine goroutines share one logger.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Fields)
	Info(ctx context.Context, msg string, fields ...Fields)
	Warn(ctx context.Context, msg string, fields ...Fields)
	// Error logs err alongside msg.
	Error(ctx context.Context, err error, msg string, fields ...Fields)
}

// Nop discards everything. Parameter sweeps replay the same bars many times
// and report through their results instead.
type Nop struct{}

func (Nop) Debug(context.Context, string, ...Fields) {}
func (Nop) Info(context.Context, string, ...Fields) {}
func (Nop) Warn(context.Context, string, ...Fields) {}
func (Nop) Error(context.Context, error, string, ...Fields) {}
