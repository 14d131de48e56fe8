// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog tracks the selected model and the backend model catalog.
//
// The catalog is fetched once and falls back to a built-in three-entry list
// (gpt-4o, gpt-4o-mini, deepseek-chat) when the backend cannot be reached.
// CheckImage is consulted before every send that carries an image.
package catalog
