package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how the process logger writes.
type Options struct {
	Dir     string
	Level   string
	Format  string // "json" or "console"
	Console bool
}

// New builds the process-wide logger. It creates a fresh timestamped file under
// opts.Dir and returns the logger together with the file path.
// Build it once at startup and pass it down; components never build their own.
func New(opts Options, now time.Time) (*zap.Logger, string, error) {
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, "", fmt.Errorf("create log directory: %w", err)
	}
	logFile := filepath.Join(opts.Dir, fmt.Sprintf("quoteharvest_%s.log", now.Format("20060102_150405")))

	lumber := &lumberjack.Logger{
		Filename:  logFile,
		MaxSize:   100, // MB
		MaxAge:    30,
		LocalTime: true,
	}

	level := parseLevel(opts.Level)
	cores := []zapcore.Core{
		zapcore.NewCore(buildEncoder(opts.Format), zapcore.AddSync(lumber), level),
	}
	if opts.Console {
		cores = append(cores, zapcore.NewCore(buildEncoder("console"), zapcore.AddSync(os.Stderr), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).
		Named("quoteharvest")
	return logger, logFile, nil
}

func buildEncoder(format string) zapcore.Encoder {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if format == "json" {
		return zapcore.NewJSONEncoder(encoderConfig)
	}
	return zapcore.NewConsoleEncoder(encoderConfig)
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Component returns a child logger tagged with the component and operation,
// the two fields every stage log line carries.
func Component(l *zap.Logger, component, op string) *zap.Logger {
	return l.With(zap.String("component", component), zap.String("op", op))
}
