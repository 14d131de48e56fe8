// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the structured logger shared by nexus components.
//
// The TUI owns the terminal, so logs go to a file by default. Components
// accept a logrus.FieldLogger and attach fields such as session_id.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options controls logger construction.
type Options struct {
	// Level is a logrus level name ("debug", "info", "warn", "error").
	Level string

	// File is the log file path. Empty writes to Output.
	File string

	// Output is used when File is empty. Defaults to os.Stderr.
	Output io.Writer
}

// New creates a logger from opts. The returned closer releases the log file
// and is never nil.
func New(opts Options) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors:   opts.File != "",
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nopCloser{}, err
	}
	logger.SetLevel(level)

	if opts.File == "" {
		out := opts.Output
		if out == nil {
			out = os.Stderr
		}
		logger.SetOutput(out)
		return logger, nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0700); err != nil {
		return nil, nopCloser{}, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nopCloser{}, fmt.Errorf("failed to open log file: %w", err)
	}
	logger.SetOutput(f)
	return logger, f, nil
}

// ParseLevel parses a level name; the empty string means info.
func ParseLevel(name string) (logrus.Level, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return logrus.InfoLevel, nil
	}
	level, err := logrus.ParseLevel(name)
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return level, nil
}

// Discard returns a logger that drops everything. Used by tests and as the
// default when a component is built without a logger.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l logrus.FieldLogger) logrus.FieldLogger {
	if l == nil {
		return Discard()
	}
	return l
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
