// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for sessions and messages.
//
// This package defines the domain types shared by the session store, the
// message timeline and the conversation controller. The backend owns the
// identity of every Session and of every confirmed Message; the client only
// ever synthesizes provisional and failure messages, whose ids live in a
// separate, prefixed namespace.
//
// # Key Types
//
//   - Session: A persisted conversation thread (id, title, timestamps)
//   - Message: One turn in a session, tagged with its Provenance
//   - Provenance: Confirmed, Provisional or Failure
//   - ModelInfo: A backend model catalog entry (id, name, image support)
//   - User: The authenticated user's profile
//   - Memory: A long-term memory entry kept by the backend
//   - Timestamp: A backend time, with or without a zone
//
// # Usage
//
// Create a provisional user message for an optimistic update:
//
//	msg := model.NewProvisionalMessage(sessionID, "Hello", false)
//	if msg.IsProvisional() {
//	    // waiting for the backend to confirm it
//	}
package model
