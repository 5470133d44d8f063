// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging constructs the structured logger both binaries use.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// Options selects the logger's level and output format.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string

	// Format is one of auto, text, json. Auto (or empty) picks text
	// when the output is a terminal and JSON otherwise.
	Format string
}

// New creates a logger writing to stderr.
//
// Callers scope it with component context via With():
//
//	logger := logging.New(options).With("component", "host")
func New(options Options) (*slog.Logger, error) {
	return newLogger(os.Stderr, isTerminal(os.Stderr), options)
}

func newLogger(w io.Writer, terminal bool, options Options) (*slog.Logger, error) {
	level, err := ParseLevel(options.Level)
	if err != nil {
		return nil, err
	}
	handlerOptions := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch options.Format {
	case "", "auto":
		if terminal {
			handler = slog.NewTextHandler(w, handlerOptions)
		} else {
			handler = slog.NewJSONHandler(w, handlerOptions)
		}
	case "text":
		handler = slog.NewTextHandler(w, handlerOptions)
	case "json":
		handler = slog.NewJSONHandler(w, handlerOptions)
	default:
		return nil, fmt.Errorf("unknown log format %q", options.Format)
	}
	return slog.New(handler), nil
}

// ParseLevel parses a level name. Empty means info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", name)
	}
}

func isTerminal(file *os.File) bool {
	return term.IsTerminal(int(file.Fd()))
}
