// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/nexusai/nexus-tui/internal/model"
	"github.com/nexusai/nexus-tui/internal/util"
)

// ErrEmptyTranscript is returned when there is nothing to export.
var ErrEmptyTranscript = errors.New("transcript has no messages")

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is a session and its confirmed messages.
type Transcript struct {
	Session    model.Session   `json:"session"`
	Messages   []model.Message `json:"messages"`
	ExportedAt time.Time       `json:"exported_at"`
}

// NewTranscript builds a transcript, keeping only confirmed messages.
func NewTranscript(sess model.Session, msgs []model.Message, now time.Time) *Transcript {
	kept := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if !m.IsLocal() {
			kept = append(kept, m)
		}
	}
	return &Transcript{Session: sess, Messages: kept, ExportedAt: now}
}

// =============================================================================
// EXPORTER INTERFACE
// =============================================================================

// Exporter converts a transcript to a file format.
type Exporter interface {
	Export(t *Transcript) ([]byte, error)

	// FileExtension includes the leading dot.
	FileExtension() string

	MimeType() string
}

// Options configures export behavior.
type Options struct {
	// IncludeMetadata adds a front matter block and a session summary.
	IncludeMetadata bool

	// IncludeTimestamps adds per-message times.
	IncludeTimestamps bool
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		IncludeMetadata:   true,
		IncludeTimestamps: true,
	}
}

// Formats lists the names ForFormat accepts.
var Formats = []string{"md", "markdown", "json"}

// ForFormat returns the exporter for a format name.
func ForFormat(format string, opts *Options) (Exporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "md", "markdown":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q (want md or json)", format)
	}
}

// =============================================================================
// FILE OUTPUT
// =============================================================================

// WriteFile exports t into dir and returns the file path. The name is built
// from the session title and the export time.
func WriteFile(t *Transcript, exp Exporter, dir string) (string, error) {
	content, err := exp.Export(t)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	filename := fmt.Sprintf("chat_%s_%s%s",
		sanitizeFilename(t.Session.DisplayTitle()),
		t.ExportedAt.Format("20060102_150405"),
		exp.FileExtension(),
	)
	path := filepath.Join(dir, filename)
	if err := util.AtomicWriteFileWithDir(path, content, 0644, 0755); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// sanitizeFilename replaces characters that are invalid in file names.
func sanitizeFilename(s string) string {
	const maxLen = 50
	runes := []rune(strings.TrimSpace(s))
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}

	out := make([]rune, 0, len(runes))
	for _, r := range runes {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			out = append(out, '-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			out = append(out, '_')
		case r < 32 || r == 127:
			out = append(out, '-')
		default:
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return "chat"
	}
	return string(out)
}
