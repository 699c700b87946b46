package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger of the engine, a zap sugared logger with
// key value helpers
type Logger struct {
	*zap.SugaredLogger
	base *zap.Logger
}

func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level: %s", level)
	}
}

// New creates a logger. Format is either text or json, output is stderr,
// stdout or a file path.
func New(level, format, output string) (*Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	var encoder zapcore.Encoder
	if strings.ToLower(format) == "json" {
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "timestamp"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	var sink zapcore.WriteSyncer
	switch strings.ToLower(output) {
	case "stderr", "":
		sink = zapcore.AddSync(os.Stderr)
		break
	case "stdout":
		sink = zapcore.AddSync(os.Stdout)
		break
	default:
		file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", output, err)
		}
		sink = zapcore.AddSync(file)
		break
	}

	return FromCore(zapcore.NewCore(encoder, sink, lvl)), nil
}

// FromCore wraps an existing zap core, tests use it with an observer core
func FromCore(core zapcore.Core) *Logger {
	base := zap.New(core, zap.AddCaller())
	return &Logger{
		SugaredLogger: base.Sugar(),
		base:          base,
	}
}

// Nop returns a logger discarding everything
func Nop() *Logger {
	base := zap.NewNop()
	return &Logger{
		SugaredLogger: base.Sugar(),
		base:          base,
	}
}

func (self *Logger) Sync() error {
	return self.base.Sync()
}

// With returns a child logger carrying the extra key value pairs
func (self *Logger) With(args ...interface{}) *Logger {
	s := self.SugaredLogger.With(args...)
	return &Logger{
		SugaredLogger: s,
		base:          s.Desugar(),
	}
}

func (self *Logger) Named(name string) *Logger {
	base := self.base.Named(name)
	return &Logger{
		SugaredLogger: base.Sugar(),
		base:          base,
	}
}
