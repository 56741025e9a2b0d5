package main

import (
	"fmt"
	"io"
	"log/slog"
)

type loggerConfig struct {
	Level  string
	Format string
	// Dev logs at debug level with source locations, whatever Level says.
	Dev bool
	// Silent drops everything below error, matching the engine's silenced
	// warnings.
	Silent bool
}

// newLogger builds the CLI logger. It does not touch the global logger.
func newLogger(cfg loggerConfig, outW io.Writer) (*slog.Logger, error) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "", "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q: want debug, info, warn or error", cfg.Level)
	}
	if cfg.Dev {
		level = slog.LevelDebug
	}
	if cfg.Silent {
		level = max(level, slog.LevelError)
	}

	handlerOpts := &slog.HandlerOptions{Level: level, AddSource: cfg.Dev}
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(outW, handlerOpts)
	case "", "text":
		handler = slog.NewTextHandler(outW, handlerOpts)
	default:
		return nil, fmt.Errorf("unknown log format %q: want text or json", cfg.Format)
	}
	return slog.New(handler), nil
}
