// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings for the chat interface.
type KeyMap struct {
	Submit           key.Binding
	NewSession       key.Binding
	DeleteSession    key.Binding
	NextSession      key.Binding
	PrevSession      key.Binding
	CycleModel       key.Binding
	ClearAttachments key.Binding
	PageUp           key.Binding
	PageDown         key.Binding
	Help             key.Binding
	Quit             key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send"),
		),
		NewSession: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "new chat"),
		),
		DeleteSession: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("C-d", "delete chat"),
		),
		NextSession: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "next chat"),
		),
		PrevSession: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("S-Tab", "previous chat"),
		),
		CycleModel: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("C-o", "next model"),
		),
		ClearAttachments: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("C-x", "drop attachments"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		Help: key.NewBinding(
			key.WithKeys("f1"),
			key.WithHelp("F1", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "esc"),
			key.WithHelp("C-c", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the status bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.NewSession, k.NextSession, k.CycleModel, k.Help, k.Quit}
}

// FullHelp returns every binding, grouped.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.ClearAttachments, k.CycleModel},
		{k.NewSession, k.DeleteSession, k.NextSession, k.PrevSession},
		{k.PageUp, k.PageDown, k.Help, k.Quit},
	}
}
