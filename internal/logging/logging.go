// Package logging builds the console loggers of the surfkmc executables and
// adapts them to the kmc.Logger interface.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// ParseLevel parses a string log level (case-insensitive); unknown values
// fall back to info.
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

// New returns a tint console logger writing to w at the given level.
func New(w io.Writer, level string, noColor bool) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      ParseLevel(level),
		TimeFormat: time.TimeOnly,
		NoColor:    noColor,
	}))
}

// Adapter exposes a *slog.Logger through the printf style kmc.Logger
// interface.
type Adapter struct {
	Logger *slog.Logger
}

// NewAdapter wraps l; a nil l uses slog.Default().
func NewAdapter(l *slog.Logger) *Adapter {
	if l == nil {
		l = slog.Default()
	}
	return &Adapter{Logger: l}
}

func (a *Adapter) Debugf(format string, v ...any) {
	a.Logger.Debug(fmt.Sprintf(format, v...))
}

func (a *Adapter) Infof(format string, v ...any) {
	a.Logger.Info(fmt.Sprintf(format, v...))
}

func (a *Adapter) Warnf(format string, v ...any) {
	a.Logger.Warn(fmt.Sprintf(format, v...))
}

func (a *Adapter) Errorf(format string, v ...any) {
	a.Logger.Error(fmt.Sprintf(format, v...))
}
