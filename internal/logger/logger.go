// Package logger builds the structured logger shared by every component.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	slogmulti "github.com/samber/slog-multi"
)

type config struct {
	debug   bool
	format  string
	writer  io.Writer
	console io.Writer
	quiet   bool
}

type Option func(*config)

// WithDebug sets the level of the logger to debug.
func WithDebug() Option {
	return func(c *config) {
		c.debug = true
	}
}

// WithFormat sets the format of the logger (text or json).
func WithFormat(format string) Option {
	return func(c *config) {
		c.format = format
	}
}

// WithWriter adds a second destination, typically a log file.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.writer = w
	}
}

// WithConsole replaces stderr as console destination.
func WithConsole(w io.Writer) Option {
	return func(c *config) {
		c.console = w
	}
}

// WithQuiet suppresses console output.
func WithQuiet() Option {
	return func(c *config) {
		c.quiet = true
	}
}

// New creates a logger fanning out to the console and the optional writer.
func New(opts ...Option) *slog.Logger {
	cfg := &config{format: "text", console: os.Stderr}
	for _, opt := range opts {
		opt(cfg)
	}

	level := slog.LevelInfo
	if cfg.debug {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.debug,
	}

	var handlers []slog.Handler
	if !cfg.quiet {
		handlers = append(handlers, newHandler(cfg.console, cfg.format, handlerOpts))
	}
	if cfg.writer != nil {
		handlers = append(handlers, newGuardedHandler(newHandler(cfg.writer, cfg.format, handlerOpts)))
	}

	return slog.New(slogmulti.Fanout(handlers...))
}

// OpenFile opens (or creates) a log file for appending.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY|os.O_SYNC, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return f, nil
}

var _ slog.Handler = (*guardedHandler)(nil)

// guardedHandler serializes writes to a shared file so that records of
// derived loggers do not interleave.
type guardedHandler struct {
	handler slog.Handler
	mu      *sync.Mutex
}

func newGuardedHandler(handler slog.Handler) *guardedHandler {
	return &guardedHandler{handler: handler, mu: &sync.Mutex{}}
}

func (g *guardedHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return g.handler.Enabled(ctx, level)
}

func (g *guardedHandler) Handle(ctx context.Context, record slog.Record) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.handler.Handle(ctx, record)
}

func (g *guardedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &guardedHandler{handler: g.handler.WithAttrs(attrs), mu: g.mu}
}

func (g *guardedHandler) WithGroup(name string) slog.Handler {
	return &guardedHandler{handler: g.handler.WithGroup(name), mu: g.mu}
}

func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
