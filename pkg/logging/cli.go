package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/fatih/color"
)

var levelColors = map[slog.Level]*color.Color{
	slog.LevelDebug: forced(color.FgCyan),
	slog.LevelInfo:  forced(color.FgGreen),
	slog.LevelWarn:  forced(color.FgYellow),
	slog.LevelError: forced(color.FgRed),
}

func forced(a color.Attribute) *color.Color {
	c := color.New(a)
	c.EnableColor()
	return c
}

// CLIHandler is a custom slog.Handler for CLI output.
type CLIHandler struct {
	mu      *sync.Mutex
	writer  io.Writer
	level   slog.Level
	colored bool
	groups  []string
	attrs   []string
}

// NewCLIHandler returns a colored handler writing to w.
func NewCLIHandler(w io.Writer, level slog.Level) *CLIHandler {
	return &CLIHandler{
		mu:      &sync.Mutex{},
		writer:  w,
		level:   level,
		colored: true,
	}
}

// WithColor turns level coloring on or off.
func (h *CLIHandler) WithColor(on bool) *CLIHandler {
	c := h.clone()
	c.colored = on
	return c
}

func (h *CLIHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *CLIHandler) Handle(_ context.Context, r slog.Record) error {
	msg := r.Message
	if len(h.groups) > 0 {
		msg = "[" + strings.Join(h.groups, ".") + "] " + msg
	}

	attrs := slices.Clone(h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, h.format(a))
		return true
	})
	if len(attrs) > 0 {
		msg = msg + ": " + strings.Join(attrs, " ")
	}

	if h.colored {
		msg = colorFor(r.Level).Sprint(msg)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintln(h.writer, msg)
	return err
}

func (h *CLIHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	c := h.clone()
	for _, a := range attrs {
		c.attrs = append(c.attrs, h.format(a))
	}
	return c
}

func (h *CLIHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.groups = append(c.groups, name)
	return c
}

func (h *CLIHandler) clone() *CLIHandler {
	return &CLIHandler{
		mu:      h.mu,
		writer:  h.writer,
		level:   h.level,
		colored: h.colored,
		groups:  slices.Clone(h.groups),
		attrs:   slices.Clone(h.attrs),
	}
}

func (h *CLIHandler) format(a slog.Attr) string {
	return fmt.Sprintf("%s=%v", a.Key, a.Value.Resolve())
}

func colorFor(l slog.Level) *color.Color {
	switch {
	case l >= slog.LevelError:
		return levelColors[slog.LevelError]
	case l >= slog.LevelWarn:
		return levelColors[slog.LevelWarn]
	case l >= slog.LevelInfo:
		return levelColors[slog.LevelInfo]
	default:
		return levelColors[slog.LevelDebug]
	}
}

// NewCLILogger returns a logger writing to stderr. Colors are dropped when
// stderr is not a terminal or NO_COLOR is set.
func NewCLILogger(level string) *slog.Logger {
	lev := ParseLogLevel(level)
	handler := NewCLIHandler(os.Stderr, lev).WithColor(!color.NoColor)
	return slog.New(handler)
}

func SetDefaultCLILogger(level string) {
	slog.SetDefault(NewCLILogger(level))
}

// ParseLogLevel converts a string log level to slog.Level.
// Defaults to slog.LevelInfo for unrecognized strings.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
