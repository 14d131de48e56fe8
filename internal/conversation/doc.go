// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation is the conversation session controller.
//
// The Controller ties together the session list (package session), the
// message timeline (package timeline), pending attachments (package
// attachment) and model selection (package catalog). The presentation layer
// calls its methods and renders View snapshots; it keeps no conversation
// state of its own.
//
// # Key Types
//
//   - Controller: orchestration entry point
//   - View: snapshot for rendering, delivered through Subscribe
//
// # Submit rules
//
//   - nothing to send (blank text, no image, no document): ErrEmptySubmit
//   - a reply still pending: ErrResponsePending
//   - an image with a model that reports no image support:
//     catalog.ErrImagesUnsupported, attachments kept
//   - no active session: one is created first; failure aborts the send
//
// # Logout
//
// The controller listens on the auth session. Any logout, explicit or forced
// by a 401 from the backend, clears the session list, the timeline, the
// attachments and the draft.
//
// # Usage
//
//	ctrl := conversation.New(client, authSession,
//	    conversation.WithStarterPrompts(cfg.Chat.StarterPrompts))
//	defer ctrl.Close()
//	stop := ctrl.Subscribe(func(v conversation.View) { render(v) })
//	defer stop()
//	_, err := ctrl.Submit(ctx, "Hello")
package conversation
