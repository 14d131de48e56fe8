// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package timeline holds the messages of the active session and runs the
// optimistic send.
//
// # Provenance
//
// Every message carries a model.Provenance. Messages from the backend are
// Confirmed. A send first appends a Provisional user message with a local
// "temp-user-" id; the backend reply replaces it by id. A failed send keeps
// the provisional message and appends a Failure message with an "error-" id.
// Local ids never overlap server ids.
//
// # Stale loads
//
// Load, Retarget and Clear bump an epoch. A load response is applied only if
// its epoch is still current and the timeline still targets the session it
// was issued for, so a slow response for a session the user already left
// cannot overwrite the current view.
//
// # Usage
//
//	tl := timeline.New(client, timeline.WithOnChange(notify))
//	_ = tl.Load(ctx, sessionID)
//	res, err := tl.SendOptimistic(ctx, timeline.SendRequest{Text: "Hello"}, resolve)
package timeline
