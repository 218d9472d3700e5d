// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package log

import (
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// NewTerminalHandlerWithLevel builds a slog handler suitable for an
// interactive terminal. When useColor is set and w is a real TTY
// (detected with go-isatty), w is wrapped with go-colorable so ANSI codes
// render on Windows consoles too; the handler itself writes slog's plain
// key=value text and emits no colour codes. This mirrors the
// log.NewTerminalHandlerWithLevel call the teacher's cmd/evm-node makes
// in its urfave/cli App.Before hook.
func NewTerminalHandlerWithLevel(w io.Writer, level slog.Level, useColor bool) slog.Handler {
	if useColor {
		if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			w = colorable.NewColorable(f)
		}
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	g := NewGlogHandler(h)
	g.Verbosity(level)
	return g
}

// NewRotatingFileHandler returns a handler that writes newline-delimited
// JSON to a size- and age-rotated log file, for long-running deployments
// of cmd/querymem-bench where an operator cannot tail an interactive
// terminal. maxSizeMB is the rotation threshold, maxBackups the number
// of rotated files kept, maxAgeDays how long to keep them.
func NewRotatingFileHandler(path string, maxSizeMB, maxBackups, maxAgeDays int, level slog.Level) slog.Handler {
	w := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
}
