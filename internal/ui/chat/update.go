// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nexusai/nexus-tui/internal/catalog"
	"github.com/nexusai/nexus-tui/internal/conversation"
	"github.com/nexusai/nexus-tui/internal/timeline"
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ViewMsg:
		m.view = msg.View
		m.updateViewport()
		return m, m.feed.wait()

	case OpDoneMsg:
		return m.handleOpDone(msg)

	case MemoriesMsg:
		if msg.Err != nil {
			m.setError(msg.Err)
		} else {
			m.setStatus(formatMemories(msg.Memories))
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.feed.stop()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.handleSubmit()

	case key.Matches(msg, m.keys.NewSession):
		return m, newSessionCmd(m.ctx, m.ctrl)

	case key.Matches(msg, m.keys.DeleteSession):
		if m.view.ActiveSessionID == "" {
			return m, nil
		}
		return m, deleteSessionCmd(m.ctx, m.ctrl, m.view.ActiveSessionID)

	case key.Matches(msg, m.keys.NextSession):
		return m.switchNeighbor(1)

	case key.Matches(msg, m.keys.PrevSession):
		return m.switchNeighbor(-1)

	case key.Matches(msg, m.keys.CycleModel):
		m.setStatus("Model: " + m.ctrl.CycleModel())
		return m, nil

	case key.Matches(msg, m.keys.ClearAttachments):
		m.ctrl.ClearAttachments()
		m.setStatus("Attachments removed")
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	if prompt, ok := m.starterFor(msg); ok {
		m.clearStatus()
		return m, starterCmd(m.ctx, m.ctrl, prompt)
	}

	var cmd tea.Cmd
	before := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if after := m.input.Value(); after != before {
		m.ctrl.SetDraft(after)
	}
	return m, cmd
}

// starterFor maps keys 1-4 to the visible starter prompts while the input
// is empty.
func (m Model) starterFor(msg tea.KeyMsg) (string, bool) {
	if m.input.Value() != "" || len(m.view.StarterPrompts) == 0 {
		return "", false
	}
	if msg.Type != tea.KeyRunes || len(msg.Runes) != 1 {
		return "", false
	}
	idx := int(msg.Runes[0] - '1')
	if idx < 0 || idx >= len(m.view.StarterPrompts) || idx > 3 {
		return "", false
	}
	return m.view.StarterPrompts[idx], true
}

func (m Model) switchNeighbor(offset int) (tea.Model, tea.Cmd) {
	id := m.ctrl.NeighborSession(offset)
	if id == "" || id == m.view.ActiveSessionID {
		return m, nil
	}
	return m, switchCmd(m.ctx, m.ctrl, id)
}

// =============================================================================
// SUBMIT AND COMMANDS
// =============================================================================

func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	text := m.input.Value()

	cmd, isCommand, err := ParseCommand(text)
	if isCommand {
		if err != nil {
			m.setError(err)
			return m, nil
		}
		m.input.Reset()
		m.ctrl.SetDraft("")
		m.clearStatus()
		return m.runCommand(cmd)
	}

	m.ctrl.SetDraft(text)
	m.input.Reset()
	m.clearStatus()
	return m, submitCmd(m.ctx, m.ctrl, text)
}

func (m Model) runCommand(cmd Command) (tea.Model, tea.Cmd) {
	switch cmd.Kind {
	case CmdImage:
		return m, attachImageCmd(m.ctrl, cmd.Arg)
	case CmdDoc:
		return m, attachDocumentCmd(m.ctx, m.ctrl, cmd.Arg)
	case CmdModel:
		if err := m.ctrl.SetModel(cmd.Arg); err != nil {
			m.setError(err)
		} else {
			m.setStatus("Model: " + cmd.Arg)
		}
		return m, nil
	case CmdLogin:
		email := cmd.Arg
		if email == "" {
			email = m.demoEmail
		}
		return m, loginCmd(m.ctx, m.ctrl, email, m.demoName)
	case CmdLogout:
		m.ctrl.Logout()
		m.setStatus("Signed out")
		return m, nil
	case CmdMemories:
		return m, memoriesCmd(m.ctx, m.ctrl)
	case CmdForget:
		return m, forgetCmd(m.ctx, m.ctrl)
	case CmdNew:
		return m, newSessionCmd(m.ctx, m.ctrl)
	case CmdExport:
		if m.view.ActiveSessionID == "" || len(m.view.Messages) == 0 {
			m.setStatus("Nothing to export yet")
			return m, nil
		}
		return m, exportCmd(m.view, cmd.Arg, m.exportDir, m.now())
	case CmdHelp:
		m.showHelp = true
		m.layout()
		return m, nil
	}
	return m, nil
}

// =============================================================================
// RESULTS
// =============================================================================

func (m Model) handleOpDone(msg OpDoneMsg) (tea.Model, tea.Cmd) {
	if msg.Err == nil {
		if msg.Info != "" {
			m.setStatus(msg.Info)
		}
		return m, nil
	}

	if msg.Op == "send" && !errors.Is(msg.Err, timeline.ErrSendFailed) {
		// Nothing was sent; give the draft back.
		if m.input.Value() == "" {
			m.input.SetValue(m.ctrl.View().Draft)
			m.input.CursorEnd()
		}
	}
	if errors.Is(msg.Err, conversation.ErrEmptySubmit) {
		return m, nil
	}
	// Message load failures are logged by the timeline only.
	if msg.Op == "switch" {
		return m, nil
	}
	m.setError(msg.Err)
	return m, nil
}

// describeError turns controller errors into status text.
func (m Model) describeError(err error) string {
	switch {
	case errors.Is(err, conversation.ErrResponsePending):
		return "Wait for the current reply to finish"
	case errors.Is(err, conversation.ErrUploading):
		return "A document is still uploading"
	case errors.Is(err, catalog.ErrImagesUnsupported):
		return fmt.Sprintf("%s cannot read images. Pick another model (Ctrl+O or /model)", m.view.SelectedModel)
	case errors.Is(err, timeline.ErrSendFailed):
		return "Message could not be sent"
	case errors.Is(err, conversation.ErrNotAuthenticated):
		return "Sign in first with /login"
	}
	return strings.TrimSpace(err.Error())
}

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(err error) {
	m.status = m.describeError(err)
	m.statusErr = true
}

func (m *Model) clearStatus() {
	m.status = ""
	m.statusErr = false
}
