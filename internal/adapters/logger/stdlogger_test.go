package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{" Error ", LevelError},
		{"nonsense", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestStdLogger_FiltersAndFormats(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLoggerTo(&buf, LevelInfo).Named("risk")

	l.Debug(context.Background(), "hidden")
	assert.Empty(t, buf.String())

	l.Error(context.Background(), errors.New("boom"), "Trade denied", map[string]interface{}{"symbol": "INFY", "reason": "cutoff"})
	out := buf.String()
	assert.Contains(t, out, "[ERROR] risk: Trade denied | error: boom | reason=cutoff symbol=INFY")
}

func TestStdLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLoggerTo(&buf, LevelDebug)

	ctx := WithFields(context.Background(), map[string]interface{}{"run": "live_1", "symbol": "ctx"})
	ctx = WithFields(ctx, map[string]interface{}{"mode": "paper"})
	l.Info(ctx, "Bar processed", map[string]interface{}{"symbol": "INFY"})

	assert.Contains(t, buf.String(), "[INFO] Bar processed | mode=paper run=live_1 symbol=INFY")
}
