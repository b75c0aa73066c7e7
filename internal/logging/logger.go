package logging

import (
	"log"
	"log/slog"
	"os"
)

var level = new(slog.LevelVar) // dynamic level if we ever want to adjust it

var Logger = newLogger()

func newLogger() *slog.Logger {
	var handler slog.Handler
	if os.Getenv("LOG_FORMAT") == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// Init sets the global level; call it once after the config is loaded.
func Init(debug bool) {
	if debug {
		level.Set(slog.LevelDebug)
	}
}

// Fatal logs at error level and exits.
func Fatal(msg string, args ...any) {
	Logger.Error(msg, args...)
	os.Exit(1)
}

// WrapSlog adapts Logger for libraries that want a *log.Logger
// (the goburrow handlers). Lines go out at debug level with the
// given key/value pair attached.
func WrapSlog(key, value string) *log.Logger {
	return slog.NewLogLogger(Logger.With(key, value).Handler(), slog.LevelDebug)
}

// Shortcut helpers (optional)
var (
	Info  = Logger.Info
	Error = Logger.Error
	Warn  = Logger.Warn
	Debug = Logger.Debug
)
