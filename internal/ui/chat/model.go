// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nexusai/nexus-tui/internal/conversation"
	"github.com/nexusai/nexus-tui/internal/ui/styles"
)

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model of the chat screen.
type Model struct {
	ctrl  Controller
	theme *styles.Theme
	keys  KeyMap

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	help     help.Model
	md       *markdownRenderer
	feed     *viewFeed

	// view is the latest controller snapshot.
	view conversation.View

	width  int
	height int

	status    string
	statusErr bool
	showHelp  bool

	ctx       context.Context
	demoEmail string
	demoName  string
	stamps    bool
	exportDir string
	now       func() time.Time
}

// Option configures a Model.
type Option func(*Model)

// WithContext sets the context passed to controller calls.
func WithContext(ctx context.Context) Option {
	return func(m *Model) { m.ctx = ctx }
}

// WithDemoIdentity sets the identity /login uses when no email is given.
func WithDemoIdentity(email, displayName string) Option {
	return func(m *Model) {
		m.demoEmail = email
		m.demoName = displayName
	}
}

// WithTimestamps shows the time next to each message.
func WithTimestamps(on bool) Option {
	return func(m *Model) { m.stamps = on }
}

// WithExportDir sets where /export writes files. Empty keeps the working
// directory.
func WithExportDir(dir string) Option {
	return func(m *Model) {
		if dir != "" {
			m.exportDir = dir
		}
	}
}

// New creates the chat model and subscribes it to ctrl.
func New(ctrl Controller, theme *styles.Theme, opts ...Option) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask anything, or /help"
	ti.CharLimit = 8192
	ti.Focus()

	vp := viewport.New(80, 20)

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.Spinner

	m := Model{
		ctrl:      ctrl,
		theme:     theme,
		keys:      DefaultKeyMap(),
		input:     ti,
		viewport:  vp,
		spinner:   sp,
		help:      help.New(),
		md:        newMarkdownRenderer(theme.GlamourStyle(), theme.ColorProfile),
		ctx:       context.Background(),
		demoEmail: "demo@example.com",
		demoName:  "Demo User",
		exportDir: ".",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.feed = newViewFeed(ctrl)
	m.view = ctrl.View()
	m.input.SetValue(m.view.Draft)
	return m
}

// Init resumes a stored login and starts listening for snapshots.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.feed.wait(),
		restoreCmd(m.ctx, m.ctrl, m.demoEmail),
	)
}

// Close stops the controller subscription.
func (m Model) Close() {
	m.feed.stop()
}

// =============================================================================
// LAYOUT
// =============================================================================

// Fixed rows around the viewport: header, attachment line, activity line,
// bordered input (3) and status bar.
const reservedRows = 7

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(m.width, m.height)
	m.layout()
	m.updateViewport()
	return m, nil
}

// mainWidth is the width of the conversation column.
func (m Model) mainWidth() int {
	w := m.width
	if sw := m.theme.SidebarWidth(); sw > 0 {
		// border + padding
		w -= sw + 2
	}
	if w < 20 {
		w = 20
	}
	return w
}

func (m *Model) layout() {
	reserved := reservedRows
	if m.showHelp {
		reserved += len(m.helpLines())
	}
	h := m.height - reserved
	if h < 1 {
		h = 1
	}
	m.viewport.Width = m.mainWidth()
	m.viewport.Height = h

	// Border (2) + padding (2) + prompt (2).
	iw := m.mainWidth() - 6
	if iw < 10 {
		iw = 10
	}
	m.input.Width = iw
}

// updateViewport re-renders the conversation, following the bottom unless
// the user scrolled up.
func (m *Model) updateViewport() {
	follow := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderConversation(m.viewport.Width))
	if follow {
		m.viewport.GotoBottom()
	}
}

// Snapshot returns the snapshot currently drawn.
func (m Model) Snapshot() conversation.View {
	return m.view
}

// Status returns the status line text and whether it reports an error.
func (m Model) Status() (string, bool) {
	return m.status, m.statusErr
}

// InputValue returns the text in the input line.
func (m Model) InputValue() string {
	return m.input.Value()
}
