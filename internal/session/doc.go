// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the ordered list of chat sessions.
//
// The backend owns session identity and titles. The Store mirrors the
// backend's list and only changes it after the backend confirms a create or
// delete; there is no optimistic deletion.
//
// # Key Types
//
//   - Store: session list with List, Create, Remove and RefreshTitles
//   - Backend: the three backend calls the store makes
//
// # Refresh semantics
//
// A refresh merges by id rather than replacing the list wholesale. The
// backend's list is taken in its own order, and sessions created through
// this store that the response does not contain yet stay at the front until
// a later response reports them.
//
// # Usage
//
//	store := session.NewStore(client, session.WithDefaultTitle("New Chat"))
//	sess, err := store.Create(ctx, "")
//	_ = store.RefreshTitles(ctx)
package session
