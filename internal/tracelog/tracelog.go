// Package tracelog wraps log/slog the same way the teacher's util/logger
// package does: a small slog.Handler that timestamps, flattens attrs to a
// single line, and tees to both a log file and stderr when debug mode is
// on. Reused here verbatim in spirit, since logging is an ambient concern
// that does not change shape just because the emulated architecture did.
package tracelog

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Handler is the shared slog.Handler every ppc32 component logs through.
type Handler struct {
	out   io.Writer
	inner slog.Handler
	mu    *sync.Mutex
	debug bool
	attrs []slog.Attr
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &Handler{out: h.out, inner: h.inner.WithAttrs(attrs), mu: h.mu, debug: h.debug, attrs: bound}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{out: h.out, inner: h.inner.WithGroup(name), mu: h.mu, debug: h.debug, attrs: h.attrs}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	parts := []string{r.Time.Format("2006/01/02 15:04:05"), r.Level.String() + ":", r.Message}
	for _, a := range h.attrs {
		parts = append(parts, a.Key+"="+a.Value.String())
	}
	r.Attrs(func(a slog.Attr) bool {
		parts = append(parts, a.Key+"="+a.Value.String())
		return true
	})
	line := []byte(strings.Join(parts, " ") + "\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	var err error
	if h.out != nil {
		_, err = h.out.Write(line)
	}
	if h.debug || r.Level >= slog.LevelWarn {
		_, _ = os.Stderr.Write(line)
	}
	return err
}

// New builds a Handler writing to file (may be nil to log only on
// warn/error to stderr) at the given minimum level.
func New(file io.Writer, level slog.Level, debug bool) *Handler {
	return &Handler{
		out:   file,
		inner: slog.NewTextHandler(file, &slog.HandlerOptions{Level: level}),
		mu:    &sync.Mutex{},
		debug: debug,
	}
}

// ParseLevel maps the config file's log_level string onto a slog.Level,
// defaulting to Info for anything unrecognized.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
