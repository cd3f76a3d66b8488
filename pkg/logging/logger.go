// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging builds the slog loggers of the fpl binaries.
//
// A logger always writes to one stream (stderr by default) and optionally
// to a daily JSON file as well:
//
//	logger, err := logging.New(logging.Config{
//	    Level:   "info",
//	    LogDir:  "~/.aleutian/fpl/logs",
//	    Service: "fpl",
//	})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//	logger.Info("fetch started", slog.Int("players", n))
//
// Stream output is text on a terminal and JSON otherwise unless Format
// says otherwise. File output is always JSON.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
)

// Output formats.
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

// ErrInvalidConfig is returned for an unknown level or format.
var ErrInvalidConfig = errors.New("invalid logging config")

// Config configures New. The zero value logs info and above to stderr.
type Config struct {
	// Level is debug, info, warn or error. Default info.
	Level string

	// Format of the stream output: auto, text or json. Default auto.
	Format string

	// Writer is the stream output. Default os.Stderr.
	Writer io.Writer

	// LogDir enables a JSON file "{Service}_{YYYY-MM-DD}.log" in this
	// directory, created if missing. A leading ~ is the home directory.
	LogDir string

	// Service is added to every record as the "service" attribute.
	Service string

	// Now names the log file. Nil uses time.Now.
	Now func() time.Time
}

// Logger is a slog.Logger that owns its log file.
type Logger struct {
	*slog.Logger
	file *os.File
}

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(s)))); err != nil {
		return 0, fmt.Errorf("%w: level %q", ErrInvalidConfig, s)
	}
	return lvl, nil
}

// New builds a logger.
//
// Inputs:
//
//	cfg - Logger configuration.
//
// Outputs:
//
//	*Logger - The logger. Close it to release the log file.
//	error - ErrInvalidConfig for a bad level or format, or the error
//	        creating the log file.
func New(cfg Config) (*Logger, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	w := cfg.Writer
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var stream slog.Handler
	switch cfg.Format {
	case "", FormatAuto:
		if isTerminal(w) {
			stream = slog.NewTextHandler(w, opts)
		} else {
			stream = slog.NewJSONHandler(w, opts)
		}
	case FormatText:
		stream = slog.NewTextHandler(w, opts)
	case FormatJSON:
		stream = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("%w: format %q", ErrInvalidConfig, cfg.Format)
	}

	l := &Logger{}
	handler := stream
	if cfg.LogDir != "" {
		if l.file, err = openLogFile(cfg); err != nil {
			return nil, err
		}
		handler = multiHandler{stream, slog.NewJSONHandler(l.file, opts)}
	}
	if cfg.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", cfg.Service)})
	}
	l.Logger = slog.New(handler)
	return l, nil
}

// Path returns the log file path, or "" without one.
func (l *Logger) Path() string {
	if l.file == nil {
		return ""
	}
	return l.file.Name()
}

// Close syncs and closes the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	return errors.Join(f.Sync(), f.Close())
}

func openLogFile(cfg Config) (*os.File, error) {
	dir := expandPath(cfg.LogDir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}
	service := cfg.Service
	if service == "" {
		service = "fpl"
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.log", service, now().Format(time.DateOnly)))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// expandPath expands a leading ~ to the home directory.
func expandPath(path string) string {
	if rest, ok := strings.CutPrefix(path, "~"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}

// multiHandler sends every record to each handler enabled for its level.
type multiHandler []slog.Handler

func (h multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, handler := range h {
		if handler.Enabled(ctx, r.Level) {
			errs = append(errs, handler.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (h multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(multiHandler, len(h))
	for i, handler := range h {
		out[i] = handler.WithAttrs(attrs)
	}
	return out
}

func (h multiHandler) WithGroup(name string) slog.Handler {
	out := make(multiHandler, len(h))
	for i, handler := range h {
		out[i] = handler.WithGroup(name)
	}
	return out
}
