// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the nexus TUI.

# Colors (colors.go)

All colors are Lip Gloss AdaptiveColor values with a light and a dark
variant:

  - Purple - assistant messages, selection, input border
  - Cyan - brand, user messages, shortcut keys
  - Amber - pending attachments, warnings
  - Rose - failed sends and errors

Status helpers (RenderSuccess, RenderError, RenderWarning, RenderInfo) prefix
an ASCII indicator so that no state relies on color alone.

# Theme (theme.go)

NewTheme builds every style once. The mode comes from the [ui] theme setting:

	theme, err := styles.NewTheme(cfg.UI.Theme) // "auto", "dark" or "light"

"auto" asks the terminal through termenv. The chosen background is pushed
into lipgloss so adaptive colors resolve consistently, and GlamourStyle
returns the matching markdown style.

# Layout

GetLayoutMode classifies the width as narrow, medium or wide. The session
sidebar is hidden in the narrow layout (SidebarWidth returns 0).
*/
package styles
