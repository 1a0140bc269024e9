package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the process-wide logger. Use GetLogger instead of reading it directly.
var Logger *zap.Logger

// InitLogger builds the global logger. format is "json" or "text"; an
// unparseable level falls back to info.
func InitLogger(level, format string) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	var cfg zap.Config
	if format == "text" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return err
	}
	Logger = logger
	return nil
}

func GetLogger() *zap.Logger {
	if Logger == nil {
		Logger, _ = zap.NewProduction()
	}
	return Logger
}

func WithComponent(component string) *zap.Logger {
	return GetLogger().With(zap.String("component", component))
}

func WithPost(postID int64, cycleID string) *zap.Logger {
	return GetLogger().With(zap.Int64("post_id", postID), zap.String("cycle_id", cycleID))
}

// Sync flushes buffered entries; call it once before exit.
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}
