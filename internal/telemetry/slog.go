package telemetry

import (
	"log/slog"
	"os"
	"strings"
)

// logLevel backs the default logger so the level can change at runtime
// (config hot reload) without rebuilding the handler.
var logLevel = new(slog.LevelVar)

// SetupLogger configures the global slog default logger based on the supplied format and level
// strings read from application configuration.
//
// format: "json"  → JSONHandler (machine readable; recommended for production)
//
//	anything else → TextHandler (human readable; suitable for local development)
//
// level: "debug", "info", "warn", "error" (case-insensitive); defaults to "info".
//
// The configured logger is installed as the default so all slog.Info/Warn/Error calls elsewhere
// in the application use it without carrying a *slog.Logger around.
func SetupLogger(format, level string) {
	lvl := ParseLevel(level)
	logLevel.Set(lvl)

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: lvl == slog.LevelDebug, // include file:line only when debugging
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialised", "format", format, "level", lvl.String())
}

// SetLevel changes the level of the logger installed by SetupLogger.
func SetLevel(level string) {
	lvl := ParseLevel(level)
	if logLevel.Level() == lvl {
		return
	}
	logLevel.Set(lvl)
	slog.Info("log level changed", "level", lvl.String())
}

// ParseLevel maps a configuration string onto a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
