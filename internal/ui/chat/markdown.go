// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
)

// markdownRenderer renders assistant replies with glamour. The underlying
// renderer is rebuilt only when the wrap width changes.
type markdownRenderer struct {
	style    string
	profile  termenv.Profile
	width    int
	renderer *glamour.TermRenderer
}

func newMarkdownRenderer(style string, profile termenv.Profile) *markdownRenderer {
	return &markdownRenderer{style: style, profile: profile}
}

// Render returns content as styled terminal output. Plain text is returned
// when glamour cannot render it.
func (m *markdownRenderer) Render(content string, width int) string {
	if width < 20 {
		width = 20
	}
	if m.renderer == nil || m.width != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.style),
			glamour.WithWordWrap(width),
			glamour.WithColorProfile(m.profile),
		)
		if err != nil {
			return content
		}
		m.renderer = r
		m.width = width
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}
