// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"github.com/nexusai/nexus-tui/internal/attachment"
	"github.com/nexusai/nexus-tui/internal/model"
)

// View is a snapshot of everything the presentation layer shows. It is
// computed on demand and owns its slices.
type View struct {
	Sessions        []model.Session
	ActiveSessionID string
	ActiveTitle     string
	Messages        []model.Message

	IsResponsePending bool
	IsUploading       bool

	SelectedModel  string
	Models         []model.ModelInfo
	ImagesAllowed  bool
	FallbackModels bool

	PendingImage    *attachment.Image
	PendingDocument *attachment.Document
	Draft           string

	User          model.User
	Authenticated bool

	// StarterPrompts is set only while the timeline is empty.
	StarterPrompts []string
}

// View computes the current snapshot.
func (c *Controller) View() View {
	authenticated := c.auth.IsAuthenticated()
	user, _ := c.auth.User()

	v := View{
		Sessions:          c.sessions.Sessions(),
		ActiveSessionID:   c.timeline.SessionID(),
		Messages:          c.timeline.Messages(),
		IsResponsePending: c.timeline.IsPending(),
		SelectedModel:     c.models.Current(),
		Models:            c.models.Catalog(),
		FallbackModels:    c.models.IsFallback(),
		User:              user,
		Authenticated:     authenticated,
	}
	v.ImagesAllowed = c.models.SupportsImages(v.SelectedModel)
	v.PendingImage, v.PendingDocument = c.composer.Pending()

	if v.ActiveSessionID != "" {
		if sess, ok := c.sessions.Get(v.ActiveSessionID); ok {
			v.ActiveTitle = sess.DisplayTitle()
		} else {
			v.ActiveTitle = model.DefaultSessionTitle
		}
	}

	c.mu.Lock()
	v.Draft = c.draft
	v.IsUploading = c.uploading
	if len(v.Messages) == 0 && !v.IsResponsePending {
		v.StarterPrompts = append([]string(nil), c.starters...)
	}
	c.mu.Unlock()
	return v
}
