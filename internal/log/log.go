package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var (
	mu     sync.RWMutex
	logger *zap.Logger
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Setup (re)builds the global logger.
//
//   - format "console" uses zap's development encoder (human readable)
//   - anything else uses the production JSON encoder with an ISO8601
//     "timestamp" key, written to stdout so container log collectors pick it up
func Setup(lvl Level, format string) error {
	level.SetLevel(toZapLevel(lvl))

	var cfg zap.Config
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stderr"}
	}
	cfg.Level = level

	built, err := cfg.Build()
	if err != nil {
		return err
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		built = built.With(zap.String("hostname", hostname))
	}

	mu.Lock()
	logger = built
	mu.Unlock()
	return nil
}

// L returns the global zap logger, building a default one on first use.
func L() *zap.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}

	if err := Setup(LevelInfo, "json"); err != nil {
		return zap.NewNop()
	}
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func SetLevel(l Level) {
	level.SetLevel(toZapLevel(l))
}

func Debug(msg string, kv ...any) {
	L().Sugar().Debugw(msg, kv...)
}

func Info(msg string, kv ...any) {
	L().Sugar().Infow(msg, kv...)
}

func Warn(msg string, kv ...any) {
	L().Sugar().Warnw(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	L().Sugar().Errorw(msg, extended...)
}

func toZapLevel(l Level) zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
