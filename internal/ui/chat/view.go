// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nexusai/nexus-tui/internal/model"
	"github.com/nexusai/nexus-tui/internal/ui/styles"
	"github.com/nexusai/nexus-tui/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the screen.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	main := lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderAttachments(),
		m.renderActivity(),
		m.renderInput(),
	)

	body := main
	if m.theme.SidebarWidth() > 0 {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(lipgloss.Height(main)), main)
	}

	parts := []string{body}
	if m.showHelp {
		parts = append(parts, strings.Join(m.helpLines(), "\n"))
	}
	parts = append(parts, m.renderStatusBar())
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// =============================================================================
// HEADER
// =============================================================================

func (m Model) renderHeader() string {
	v := m.view
	title := v.ActiveTitle
	if title == "" {
		title = "New conversation"
	}

	left := m.theme.HeaderBrand.Render("nexus") + "  " + m.theme.HeaderTitle.Render(title)

	meta := []string{v.SelectedModel}
	if !v.ImagesAllowed {
		meta = append(meta, "text only")
	}
	if v.FallbackModels {
		meta = append(meta, "offline catalog")
	}
	if v.Authenticated {
		meta = append(meta, v.User.DisplayName)
	} else {
		meta = append(meta, "not signed in")
	}
	right := m.theme.HeaderMeta.Render(strings.Join(meta, " | "))

	width := m.mainWidth()
	gap := width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(width).Render(left + strings.Repeat(" ", gap) + right)
}

// =============================================================================
// SIDEBAR
// =============================================================================

func (m Model) renderSidebar(height int) string {
	width := m.theme.SidebarWidth()
	now := m.now()

	lines := []string{m.theme.SidebarTitle.Render("Chats")}
	if len(m.view.Sessions) == 0 {
		lines = append(lines, m.theme.Muted.Render("No chats yet"))
	}
	for _, s := range m.view.Sessions {
		age := util.FormatAge(s.UpdatedAt.Time, now)
		titleWidth := width - util.StringWidth(age) - 2
		title := util.PadWidth(util.TruncateWidth(s.DisplayTitle(), titleWidth), titleWidth)
		line := title + " " + m.theme.SessionMeta.Render(age)
		if s.ID == m.view.ActiveSessionID {
			line = m.theme.SessionItemSelected.Render(title+" "+age)
		} else {
			line = m.theme.SessionItem.Render(line)
		}
		lines = append(lines, line)
	}

	return m.theme.Sidebar.
		Width(width).
		Height(height).
		Render(strings.Join(lines, "\n"))
}

// =============================================================================
// CONVERSATION
// =============================================================================

// renderConversation draws the message list, or the empty state.
func (m Model) renderConversation(width int) string {
	v := m.view
	if len(v.Messages) == 0 {
		return m.renderEmpty()
	}

	blocks := make([]string, 0, len(v.Messages))
	for _, msg := range v.Messages {
		blocks = append(blocks, m.renderMessage(msg, width))
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) renderMessage(msg model.Message, width int) string {
	var label string
	if msg.Role == model.RoleUser {
		label = m.theme.UserLabel.Render(msg.Role.DisplayName())
	} else {
		label = m.theme.AssistantLabel.Render(msg.Role.DisplayName())
	}
	if msg.IsProvisional() {
		label += " " + m.theme.Provisional.Render("(sending...)")
	}
	if msg.HasImage() {
		label += " " + m.theme.ImageBadge.Render(model.ImageMarker)
	}
	if m.stamps && !msg.CreatedAt.IsZero() {
		label += " " + m.theme.Muted.Render(msg.CreatedAt.Local().Format("15:04"))
	}

	var body string
	switch {
	case msg.IsFailure():
		body = m.theme.Failure.Width(width - 2).Render(styles.StatusIndicators.Error + " " + msg.Content)
	case msg.Role == model.RoleAssistant:
		body = m.md.Render(msg.Content, width-2)
	default:
		body = m.theme.UserText.Width(width - 2).Render(msg.Content)
	}
	if body == "" {
		return label
	}
	return label + "\n" + body
}

func (m Model) renderEmpty() string {
	if !m.view.Authenticated {
		return m.theme.Welcome.Render("Welcome to nexus. Type /login to sign in.")
	}

	lines := []string{m.theme.Welcome.Render("Start a conversation, or pick a prompt:")}
	for i, p := range m.view.StarterPrompts {
		if i > 3 {
			break
		}
		lines = append(lines, m.theme.StarterKey.Render(fmt.Sprintf("[%d]", i+1))+" "+m.theme.StarterText.Render(p))
	}
	return strings.Join(lines, "\n")
}

// =============================================================================
// INPUT AREA
// =============================================================================

func (m Model) renderAttachments() string {
	var parts []string
	if img := m.view.PendingImage; img != nil {
		parts = append(parts, fmt.Sprintf("[image] %s", img.Name))
	}
	if doc := m.view.PendingDocument; doc != nil {
		parts = append(parts, fmt.Sprintf("[doc] %s", doc.Name))
	}
	if len(parts) == 0 {
		return ""
	}
	return m.theme.Attachment.Render(strings.Join(parts, "  ") + "  (Ctrl+X to remove)")
}

func (m Model) renderActivity() string {
	switch {
	case m.view.IsUploading:
		return m.spinner.View() + " " + m.theme.ThinkingText.Render("Uploading document...")
	case m.view.IsResponsePending:
		return m.spinner.View() + " " + m.theme.ThinkingText.Render("Thinking...")
	}
	return ""
}

func (m Model) renderInput() string {
	return m.theme.InputBox.Width(m.mainWidth() - 2).Render(m.input.View())
}

// =============================================================================
// STATUS AND HELP
// =============================================================================

func (m Model) renderStatusBar() string {
	var text string
	switch {
	case m.status != "" && m.statusErr:
		text = styles.RenderError(m.status)
	case m.status != "":
		text = styles.RenderInfo(m.status)
	default:
		text = m.help.ShortHelpView(m.keys.ShortHelp())
	}
	return m.theme.StatusBar.Width(m.width).Render(text)
}

func (m Model) helpLines() []string {
	lines := []string{m.help.FullHelpView(m.keys.FullHelp()), ""}
	for _, l := range CommandHelp() {
		lines = append(lines, m.theme.Muted.Render(l))
	}
	return strings.Split(strings.Join(lines, "\n"), "\n")
}
