// Package logger provides the slog-based logger used across the
// module, with ANSI-colored levels for terminal output.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

// Config controls logger construction.
type Config struct {
	Level  slog.Level
	Output io.Writer
	// NoColor disables ANSI escapes, for log files and CI output.
	NoColor bool
}

// NewDefaultLogger creates a colored stderr logger at the given level.
func NewDefaultLogger(level slog.Level) *slog.Logger {
	return NewLogger(Config{Level: level, Output: os.Stderr})
}

// NewLogger creates a logger from an explicit config.
func NewLogger(cfg Config) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	return slog.New(&coloredHandler{
		out:     cfg.Output,
		level:   cfg.Level,
		noColor: cfg.NoColor,
		mu:      &sync.Mutex{},
	})
}

// coloredHandler renders records as "LEVEL message key=value" lines.
// Warnings are yellow, errors red, and persistence messages green so
// database activity stands out when scanning a terminal.
type coloredHandler struct {
	out     io.Writer
	level   slog.Level
	noColor bool
	attrs   []slog.Attr
	groups  []string

	// shared across WithAttrs/WithGroup clones to serialize writes
	mu *sync.Mutex
}

func (h *coloredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *coloredHandler) Handle(_ context.Context, r slog.Record) error {
	color := ""
	switch {
	case r.Level >= slog.LevelError:
		color = colorRed
	case r.Level >= slog.LevelWarn:
		color = colorYellow
	case strings.Contains(strings.ToLower(r.Message), "persist"):
		color = colorGreen
	}
	if h.noColor {
		color = ""
	}

	var b strings.Builder
	b.WriteString(r.Time.Format("15:04:05.000"))
	b.WriteByte(' ')
	if color != "" {
		b.WriteString(color)
	}
	b.WriteString(r.Level.String())
	b.WriteByte(' ')
	b.WriteString(r.Message)

	writeAttr := func(a slog.Attr) {
		key := a.Key
		if len(h.groups) > 0 {
			key = strings.Join(h.groups, ".") + "." + key
		}
		fmt.Fprintf(&b, " %s=%v", key, a.Value.Any())
	}
	for _, a := range h.attrs {
		writeAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(a)
		return true
	})

	if color != "" {
		b.WriteString(colorReset)
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

func (h *coloredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *coloredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}
