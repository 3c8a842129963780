package logging

import (
	"context"
	"fmt"
	"io"
	"os"
)

// NewDefaultLogger creates a stdout zap logger at the LOG_LEVEL level.
func NewDefaultLogger() Logger {
	logger, err := NewZapLogger(LogConfig{Level: ParseLevel(os.Getenv("LOG_LEVEL"))})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize default zap logger: %v", err))
	}
	return logger
}

// InitGlobalLogger installs the process logger. Entries go to logFile when it
// is set, stdout otherwise. The returned closer releases the file.
func InitGlobalLogger(level, logFile string) (io.Closer, error) {
	config := LogConfig{Level: ParseLevel(level), Name: "overlay"}

	var closer io.Closer = nopCloser{}
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", logFile, err)
		}
		config.Output = file
		closer = file
	}

	logger, err := NewZapLogger(config)
	if err != nil {
		closer.Close()
		return nil, err
	}
	SetGlobalLogger(logger)

	logger.Info("Logger initialized",
		String("level", config.Level.String()),
		String("log_file", logFile),
	)
	return closer, nil
}

// MustSync flushes buffered entries of the global logger
func MustSync() {
	if zapLogger, ok := GetGlobalLogger().(*ZapAdapter); ok {
		_ = zapLogger.Sync()
	}
}

// WithContext adds context values to the global logger
func WithContext(ctx context.Context) Logger {
	return GetGlobalLogger().WithContext(ctx)
}

// WithFields adds fields to the global logger
func WithFields(fields ...Field) Logger {
	return GetGlobalLogger().WithFields(fields...)
}

// Component returns a logger tagged with a component name. A nil base means
// the global logger.
func Component(base Logger, name string) Logger {
	if base == nil {
		base = GetGlobalLogger()
	}
	return base.WithFields(Field{Key: "component", Value: name})
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
