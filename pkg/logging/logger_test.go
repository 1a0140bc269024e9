package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitLoggerLevels(t *testing.T) {
	old := Logger
	defer func() { Logger = old }()

	tests := []struct {
		name   string
		level  string
		format string
		want   zapcore.Level
	}{
		{"json debug", "debug", "json", zapcore.DebugLevel},
		{"text warn", "warn", "text", zapcore.WarnLevel},
		{"garbage falls back to info", "loud", "json", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := InitLogger(tt.level, tt.format); err != nil {
				t.Fatalf("InitLogger: %v", err)
			}
			if !Logger.Core().Enabled(tt.want) {
				t.Errorf("level %s should be enabled", tt.want)
			}
			if tt.want > zapcore.DebugLevel && Logger.Core().Enabled(tt.want-1) {
				t.Errorf("level %s should be disabled", tt.want-1)
			}
		})
	}
}

func TestWithComponentAddsField(t *testing.T) {
	old := Logger
	defer func() { Logger = old }()

	core, logs := observer.New(zapcore.InfoLevel)
	Logger = zap.New(core)

	WithComponent("scheduler").Info("tick")
	WithPost(7, "cyc").Info("published")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if got := entries[0].ContextMap()["component"]; got != "scheduler" {
		t.Errorf("component = %v", got)
	}
	if got := entries[1].ContextMap()["post_id"]; got != int64(7) {
		t.Errorf("post_id = %v", got)
	}
}
