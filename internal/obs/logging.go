// Package obs contains observability utilities such as logging and counters.
package obs

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	level    = new(slog.LevelVar)
	initOnce sync.Once
)

// Logger is the global structured logger used by the service.
//
// Logger is exported to allow other packages to use it for logging.
var Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

// InitLogger initializes the global Logger with JSON handler at info level.
// Only the first call replaces Logger; later calls just reset the level, so it is
// safe while other goroutines are logging.
//
// InitLogger is exported to allow other packages to initialize the Logger.
func InitLogger() {
	level.Set(slog.LevelInfo)
	initOnce.Do(func() {
		h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
		Logger = slog.New(h)
	})
}

// SetLevel changes the level of the global Logger. Unknown names fall back to info.
func SetLevel(name string) {
	switch strings.ToLower(name) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn", "warning":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
}
