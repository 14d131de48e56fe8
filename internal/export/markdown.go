// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nexusai/nexus-tui/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports transcripts as Markdown with YAML front matter.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// frontMatter is the YAML header of an exported file.
type frontMatter struct {
	Title    string `yaml:"title"`
	Session  string `yaml:"session"`
	Created  string `yaml:"created,omitempty"`
	Updated  string `yaml:"updated,omitempty"`
	Messages int    `yaml:"messages"`
	Exported string `yaml:"exported"`
}

// Export converts a transcript to Markdown.
func (e *MarkdownExporter) Export(t *Transcript) ([]byte, error) {
	if t == nil {
		return nil, errors.New("transcript is nil")
	}
	if len(t.Messages) == 0 {
		return nil, ErrEmptyTranscript
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		fm := frontMatter{
			Title:    t.Session.DisplayTitle(),
			Session:  t.Session.ID,
			Created:  formatTime(t.Session.CreatedAt.Time),
			Updated:  formatTime(t.Session.UpdatedAt.Time),
			Messages: len(t.Messages),
			Exported: formatTime(t.ExportedAt),
		}
		header, err := yaml.Marshal(fm)
		if err != nil {
			return nil, fmt.Errorf("front matter: %w", err)
		}
		sb.WriteString("---\n")
		sb.Write(header)
		sb.WriteString("---\n\n")
	}

	sb.WriteString("# ")
	sb.WriteString(escapeMarkdown(t.Session.DisplayTitle()))
	sb.WriteString("\n\n")

	for i, msg := range t.Messages {
		if i > 0 {
			sb.WriteString("\n---\n\n")
		}
		e.writeMessage(&sb, msg)
	}

	sb.WriteString("\n---\n\n*Exported from nexus*\n")
	return []byte(sb.String()), nil
}

func (e *MarkdownExporter) writeMessage(sb *strings.Builder, msg model.Message) {
	sb.WriteString("## ")
	sb.WriteString(msg.Role.DisplayName())
	if e.options.IncludeTimestamps && !msg.CreatedAt.IsZero() {
		sb.WriteString(" *(")
		sb.WriteString(msg.CreatedAt.Format("2006-01-02 15:04"))
		sb.WriteString(")*")
	}
	sb.WriteString("\n\n")

	if msg.HasImage() {
		sb.WriteString("*[image attached]*\n\n")
	}

	// Assistant replies are Markdown already; user text is escaped.
	if msg.Role == model.RoleAssistant {
		sb.WriteString(msg.Content)
	} else {
		sb.WriteString(escapeMarkdown(msg.Content))
	}
	sb.WriteString("\n")
}

func (e *MarkdownExporter) FileExtension() string { return ".md" }

func (e *MarkdownExporter) MimeType() string { return "text/markdown" }

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"#", `\#`,
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	">", `\>`,
)

// escapeMarkdown escapes characters that would change how plain text renders.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
