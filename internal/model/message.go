// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for sessions and messages.
package model

import (
	"strings"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// =============================================================================
// PROVENANCE
// =============================================================================

// Provenance tells where a message in the timeline came from.
type Provenance int

const (
	// Confirmed messages carry an id issued by the backend.
	Confirmed Provenance = iota

	// Provisional messages were inserted locally and await confirmation.
	Provisional

	// Failure messages are local, permanent markers for a failed send.
	Failure
)

// String returns the provenance name.
func (p Provenance) String() string {
	switch p {
	case Confirmed:
		return "confirmed"
	case Provisional:
		return "provisional"
	case Failure:
		return "failure"
	default:
		return "unknown"
	}
}

// Local id prefixes. Backend ids never carry these prefixes.
const (
	ProvisionalIDPrefix = "temp-user-"
	FailureIDPrefix     = "error-"
)

// ImageMarker is the image_url value shown for a locally sent image.
const ImageMarker = "[image]"

// SendFailureText is the fixed apology shown when a send fails.
const SendFailureText = "Sorry, something went wrong. Please try again."

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single turn in a session.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"image_url,omitempty"`
	CreatedAt Timestamp `json:"created_at"`

	// Provenance is client-side only; the backend never sees it.
	Provenance Provenance `json:"-"`
}

// NewProvisionalMessage creates the optimistic user message for a send.
func NewProvisionalMessage(sessionID, content string, withImage bool) Message {
	msg := Message{
		ID:         ProvisionalIDPrefix + uuid.NewString(),
		SessionID:  sessionID,
		Role:       RoleUser,
		Content:    content,
		CreatedAt:  Now(),
		Provenance: Provisional,
	}
	if withImage {
		msg.ImageURL = ImageMarker
	}
	return msg
}

// NewFailureMessage creates the assistant-role marker appended after a failed send.
func NewFailureMessage(sessionID string) Message {
	return Message{
		ID:         FailureIDPrefix + uuid.NewString(),
		SessionID:  sessionID,
		Role:       RoleAssistant,
		Content:    SendFailureText,
		CreatedAt:  Now(),
		Provenance: Failure,
	}
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// IsProvisional reports whether the message is still awaiting confirmation.
func (m Message) IsProvisional() bool {
	return m.Provenance == Provisional
}

// IsFailure reports whether the message marks a failed send.
func (m Message) IsFailure() bool {
	return m.Provenance == Failure
}

// IsLocal reports whether the id was generated on this client.
func (m Message) IsLocal() bool {
	return IsLocalID(m.ID)
}

// HasImage reports whether the message carries an image.
func (m Message) HasImage() bool {
	return m.ImageURL != ""
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m Message) Preview(maxLen int) string {
	runes := []rune(m.Content)
	if len(runes) <= maxLen {
		return m.Content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// IsLocalID reports whether id belongs to the client-side namespace.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, ProvisionalIDPrefix) || strings.HasPrefix(id, FailureIDPrefix)
}

// Confirm marks messages decoded from the backend as confirmed.
func Confirm(msgs ...Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		m.Provenance = Confirmed
		out[i] = m
	}
	return out
}
