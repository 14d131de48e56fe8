// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme modes accepted by NewTheme.
const (
	ModeAuto  = "auto"
	ModeDark  = "dark"
	ModeLight = "light"
)

// Theme holds all the styled components for the application.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	Width  int
	Height int

	// ==========================================================================
	// HEADER
	// ==========================================================================

	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderMeta  lipgloss.Style

	// ==========================================================================
	// SESSION SIDEBAR
	// ==========================================================================

	Sidebar             lipgloss.Style
	SidebarTitle        lipgloss.Style
	SessionItem         lipgloss.Style
	SessionItemSelected lipgloss.Style
	SessionMeta         lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	UserText       lipgloss.Style
	Provisional    lipgloss.Style
	Failure        lipgloss.Style
	ImageBadge     lipgloss.Style

	// ==========================================================================
	// EMPTY STATE
	// ==========================================================================

	Welcome     lipgloss.Style
	StarterKey  lipgloss.Style
	StarterText lipgloss.Style

	// ==========================================================================
	// INPUT AND STATUS
	// ==========================================================================

	InputBox     lipgloss.Style
	Attachment   lipgloss.Style
	Spinner      lipgloss.Style
	ThinkingText lipgloss.Style
	StatusBar    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
	Muted        lipgloss.Style
}

// NewTheme creates a theme. mode is one of ModeAuto, ModeDark or ModeLight;
// auto asks the terminal for its background.
func NewTheme(mode string) (*Theme, error) {
	var isDark bool
	switch mode {
	case "", ModeAuto:
		isDark = termenv.HasDarkBackground()
	case ModeDark:
		isDark = true
	case ModeLight:
		isDark = false
	default:
		return nil, fmt.Errorf("unknown theme %q (want auto, dark or light)", mode)
	}
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{
		IsDark:       isDark,
		ColorProfile: termenv.ColorProfile(),
	}
	t.initStyles()
	return t, nil
}

// GlamourStyle returns the glamour standard style matching the theme.
func (t *Theme) GlamourStyle() string {
	if t.IsDark {
		return "dark"
	}
	return "light"
}

func (t *Theme) initStyles() {
	// Header
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderBrand = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)
	t.HeaderMeta = lipgloss.NewStyle().
		Foreground(TextSecondary)

	// Sidebar
	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		PaddingRight(1)
	t.SidebarTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextSecondary).
		MarginBottom(1)
	t.SessionItem = lipgloss.NewStyle().
		Foreground(TextPrimary)
	t.SessionItemSelected = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple).
		Background(SelectionBg)
	t.SessionMeta = lipgloss.NewStyle().
		Foreground(TextMuted)

	// Messages
	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)
	t.UserText = lipgloss.NewStyle().
		Foreground(TextPrimary).
		PaddingLeft(2)
	t.Provisional = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)
	t.Failure = lipgloss.NewStyle().
		Foreground(Rose).
		PaddingLeft(2)
	t.ImageBadge = lipgloss.NewStyle().
		Foreground(Amber)

	// Empty state
	t.Welcome = lipgloss.NewStyle().
		Foreground(TextSecondary).
		MarginBottom(1)
	t.StarterKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.StarterText = lipgloss.NewStyle().
		Foreground(TextPrimary)

	// Input and status
	t.InputBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(0, 1)
	t.Attachment = lipgloss.NewStyle().
		Foreground(Amber)
	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)
	t.ThinkingText = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)
	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)
	t.ShortcutKey = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)
	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)
	t.Muted = lipgloss.NewStyle().
		Foreground(TextMuted)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns, sidebar hidden
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)

// SidebarWidth returns the session sidebar width for the layout, 0 when the
// sidebar is hidden.
func (t *Theme) SidebarWidth() int {
	switch t.GetLayoutMode() {
	case LayoutNarrow:
		return 0
	case LayoutMedium:
		return 24
	default:
		return 32
	}
}
