// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for sessions and messages.
package model

import "strings"

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// ModelInfo is one entry of the backend model catalog.
type ModelInfo struct {
	// ID is the model identifier sent with each message
	ID string `json:"id"`

	// Name is the human-readable display name
	Name string `json:"name"`

	// SupportsImages reports whether the model accepts image input.
	// The backend calls this "vision".
	SupportsImages bool `json:"vision"`
}

// DisplayName returns the name, falling back to the id.
func (m ModelInfo) DisplayName() string {
	if strings.TrimSpace(m.Name) == "" {
		return m.ID
	}
	return m.Name
}

// CapabilitiesString returns a comma-separated list of model capabilities.
func (m ModelInfo) CapabilitiesString() string {
	caps := []string{"Text"}
	if m.SupportsImages {
		caps = append(caps, "Vision")
	}
	return strings.Join(caps, ", ")
}

// =============================================================================
// FALLBACK CATALOG
// =============================================================================

// DefaultModelID is the model targeted before the user picks one.
const DefaultModelID = "gpt-4o"

// FallbackModels is used when the backend catalog cannot be fetched.
var FallbackModels = []ModelInfo{
	{ID: "gpt-4o", Name: "gpt-4o", SupportsImages: true},
	{ID: "gpt-4o-mini", Name: "gpt-4o-mini", SupportsImages: true},
	{ID: "deepseek-chat", Name: "deepseek-chat", SupportsImages: false},
}

// FallbackCatalog returns a copy of FallbackModels.
func FallbackCatalog() []ModelInfo {
	out := make([]ModelInfo, len(FallbackModels))
	copy(out, FallbackModels)
	return out
}
