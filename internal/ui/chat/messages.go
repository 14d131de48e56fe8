// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nexusai/nexus-tui/internal/attachment"
	"github.com/nexusai/nexus-tui/internal/conversation"
	"github.com/nexusai/nexus-tui/internal/export"
	"github.com/nexusai/nexus-tui/internal/model"
	"github.com/nexusai/nexus-tui/internal/timeline"
)

// Controller is the part of *conversation.Controller the TUI drives.
type Controller interface {
	View() conversation.View
	Subscribe(fn func(conversation.View)) func()

	Submit(ctx context.Context, text string) (timeline.Result, error)
	SelectStarterPrompt(ctx context.Context, text string) (timeline.Result, error)
	SetDraft(text string)

	LoadSessions(ctx context.Context) error
	SwitchSession(ctx context.Context, id string) error
	NeighborSession(offset int) string
	CreateSession(ctx context.Context) (model.Session, error)
	DeleteSession(ctx context.Context, id string) error

	AttachImage(name string, r io.Reader) (attachment.Image, error)
	AttachDocument(ctx context.Context, name string, r io.Reader) (attachment.Document, error)
	ClearAttachments()

	LoadCatalog(ctx context.Context) error
	SetModel(id string) error
	CycleModel() string

	Login(ctx context.Context, email, displayName string) (model.User, error)
	Restore(ctx context.Context) (model.User, error)
	Logout()
	Memories(ctx context.Context) ([]model.Memory, error)
	ClearMemories(ctx context.Context) error
}

// =============================================================================
// MESSAGES
// =============================================================================

// ViewMsg carries a fresh controller snapshot.
type ViewMsg struct {
	View conversation.View
}

// OpDoneMsg reports the outcome of a controller call.
type OpDoneMsg struct {
	Op   string
	Info string
	Err  error
}

// MemoriesMsg carries the result of /memories.
type MemoriesMsg struct {
	Memories []model.Memory
	Err      error
}

// =============================================================================
// SUBSCRIPTION
// =============================================================================

// viewFeed turns controller notifications into a channel holding at most
// the latest snapshot.
type viewFeed struct {
	ch   chan conversation.View
	stop func()
}

func newViewFeed(ctrl Controller) *viewFeed {
	f := &viewFeed{ch: make(chan conversation.View, 1)}
	f.stop = ctrl.Subscribe(f.push)
	return f
}

func (f *viewFeed) push(v conversation.View) {
	for {
		select {
		case f.ch <- v:
			return
		default:
		}
		// Drop the stale snapshot and retry.
		select {
		case <-f.ch:
		default:
		}
	}
}

// wait returns a command that delivers the next snapshot.
func (f *viewFeed) wait() tea.Cmd {
	return func() tea.Msg {
		return ViewMsg{View: <-f.ch}
	}
}

// =============================================================================
// COMMAND CREATORS
// =============================================================================

func op(name string, fn func() (string, error)) tea.Cmd {
	return func() tea.Msg {
		info, err := fn()
		return OpDoneMsg{Op: name, Info: info, Err: err}
	}
}

func submitCmd(ctx context.Context, ctrl Controller, text string) tea.Cmd {
	return op("send", func() (string, error) {
		_, err := ctrl.Submit(ctx, text)
		return "", err
	})
}

func starterCmd(ctx context.Context, ctrl Controller, text string) tea.Cmd {
	return op("send", func() (string, error) {
		_, err := ctrl.SelectStarterPrompt(ctx, text)
		return "", err
	})
}

func switchCmd(ctx context.Context, ctrl Controller, id string) tea.Cmd {
	return op("switch", func() (string, error) {
		return "", ctrl.SwitchSession(ctx, id)
	})
}

func newSessionCmd(ctx context.Context, ctrl Controller) tea.Cmd {
	return op("new", func() (string, error) {
		sess, err := ctrl.CreateSession(ctx)
		if err != nil {
			return "", err
		}
		return "Started " + sess.DisplayTitle(), nil
	})
}

func deleteSessionCmd(ctx context.Context, ctrl Controller, id string) tea.Cmd {
	return op("delete", func() (string, error) {
		return "Chat deleted", ctrl.DeleteSession(ctx, id)
	})
}

func attachImageCmd(ctrl Controller, path string) tea.Cmd {
	return op("image", func() (string, error) {
		path = expandPath(path)
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		img, err := ctrl.AttachImage(filepath.Base(path), f)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Image attached: %s (%s)", img.Name, img.MIMEType), nil
	})
}

func attachDocumentCmd(ctx context.Context, ctrl Controller, path string) tea.Cmd {
	return op("document", func() (string, error) {
		path = expandPath(path)
		f, err := os.Open(path)
		if err != nil {
			return "", err
		}
		defer f.Close()
		doc, err := ctrl.AttachDocument(ctx, filepath.Base(path), f)
		if err != nil {
			return "", err
		}
		return "Document attached: " + doc.Name, nil
	})
}

func loginCmd(ctx context.Context, ctrl Controller, email, name string) tea.Cmd {
	return op("login", func() (string, error) {
		user, err := ctrl.Login(ctx, email, name)
		if err != nil {
			return "", err
		}
		return "Signed in as " + user.DisplayName, nil
	})
}

// restoreCmd resumes a stored login. Having none is reported as a hint, not
// an error.
func restoreCmd(ctx context.Context, ctrl Controller, email string) tea.Cmd {
	return op("restore", func() (string, error) {
		user, err := ctrl.Restore(ctx)
		if errors.Is(err, conversation.ErrNotAuthenticated) {
			return "Not signed in. Type /login to sign in as " + email, nil
		}
		if err != nil {
			return "", err
		}
		return "Welcome back, " + user.DisplayName, nil
	})
}

func catalogCmd(ctx context.Context, ctrl Controller) tea.Cmd {
	return op("models", func() (string, error) {
		return "", ctrl.LoadCatalog(ctx)
	})
}

func memoriesCmd(ctx context.Context, ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		mems, err := ctrl.Memories(ctx)
		return MemoriesMsg{Memories: mems, Err: err}
	}
}

func forgetCmd(ctx context.Context, ctrl Controller) tea.Cmd {
	return op("forget", func() (string, error) {
		return "Memories cleared", ctrl.ClearMemories(ctx)
	})
}

// exportCmd writes the chat in v to dir.
func exportCmd(v conversation.View, format, dir string, now time.Time) tea.Cmd {
	sess := model.Session{ID: v.ActiveSessionID, Title: v.ActiveTitle}
	for _, s := range v.Sessions {
		if s.ID == v.ActiveSessionID {
			sess = s
			break
		}
	}
	msgs := v.Messages
	return op("export", func() (string, error) {
		exp, err := export.ForFormat(format, export.DefaultOptions())
		if err != nil {
			return "", err
		}
		path, err := export.WriteFile(export.NewTranscript(sess, msgs, now), exp, dir)
		if err != nil {
			return "", err
		}
		return "Exported to " + path, nil
	})
}

// formatMemories renders memories one per line as "key: value (category)".
func formatMemories(mems []model.Memory) string {
	if len(mems) == 0 {
		return "No memories stored"
	}
	lines := make([]string, 0, len(mems))
	for _, m := range mems {
		line := m.Key + ": " + m.Value
		if m.Category != "" {
			line += " (" + m.Category + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
