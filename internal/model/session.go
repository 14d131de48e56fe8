// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for sessions and messages.
package model

// DefaultSessionTitle is the title the client requests for new sessions.
const DefaultSessionTitle = "New Chat"

// Session is a named, persisted conversation thread owned by the backend.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt Timestamp `json:"created_at"`
	UpdatedAt Timestamp `json:"updated_at"`
}

// DisplayTitle returns the title, or a placeholder for untitled sessions.
func (s Session) DisplayTitle() string {
	if s.Title == "" {
		return DefaultSessionTitle
	}
	return s.Title
}

// User is the authenticated user's profile.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Provider    string    `json:"provider"`
	CreatedAt   Timestamp `json:"created_at"`
}

// Memory is a long-term memory entry the backend keeps for a user.
type Memory struct {
	ID        int       `json:"id"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Category  string    `json:"category"`
	CreatedAt Timestamp `json:"created_at"`
}
