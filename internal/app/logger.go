package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// newLogger creates the app's slog.Logger. It does not set the global
// logger, allowing for isolated instances. When logFile is non-empty the
// output is additionally teed into it so the logs module can read it back.
func newLogger(levelStr, formatStr, logFile string, outW io.Writer) (*slog.Logger, func(), error) {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	closeFn := func() {}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %w", logFile, err)
		}
		outW = io.MultiWriter(outW, f)
		closeFn = func() { _ = f.Close() }
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if formatStr == "json" {
		handler = slog.NewJSONHandler(outW, handlerOpts)
	} else {
		handler = slog.NewTextHandler(outW, handlerOpts)
	}

	return slog.New(handler), closeFn, nil
}
