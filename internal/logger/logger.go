// Package logger configures the process-wide zerolog logger and hands out
// per-component children.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu   sync.RWMutex
	root = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// Options configure Init.
type Options struct {
	Level       string // debug, info, warn, error; default info
	Environment string // "development" selects the console writer
	Output      io.Writer
}

// Init replaces the root logger. Unknown levels fall back to info.
func Init(opts Options) zerolog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if strings.EqualFold(opts.Environment, "development") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	l := zerolog.New(out).Level(level).With().Timestamp().Logger()
	mu.Lock()
	root = l
	mu.Unlock()
	return l
}

// Root returns the current root logger.
func Root() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// ForComponent returns a child logger tagged with component.
func ForComponent(name string) zerolog.Logger {
	return Root().With().Str("component", name).Logger()
}

// Nop discards everything. Useful in tests.
func Nop() zerolog.Logger { return zerolog.Nop() }
