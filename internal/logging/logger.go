package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls where log records go.
type Options struct {
	// FilePath receives JSON records when non-empty.
	FilePath string
	// Verbose lowers the console level to debug.
	Verbose bool
}

// Logger wraps a zap logger and the file sink it owns.
type Logger struct {
	*zap.Logger
	closeFile func()
}

// New builds a console logger on stderr teed with an optional JSON file sink.
func New(opts Options) (*Logger, error) {
	level := zapcore.InfoLevel
	if opts.Verbose {
		level = zapcore.DebugLevel
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stderr), level),
	}

	closeFile := func() {}
	if path := strings.TrimSpace(opts.FilePath); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		sink, closeSink, err := zap.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", path, err)
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), sink, zapcore.DebugLevel))
		closeFile = closeSink
	}

	return &Logger{
		Logger:    zap.New(zapcore.NewTee(cores...)),
		closeFile: closeFile,
	}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: zap.NewNop(), closeFile: func() {}}
}

// Close flushes buffered records and releases the file sink.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	_ = l.Sync()
	l.closeFile()
}
