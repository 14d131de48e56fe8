// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth owns the process-wide access token.
//
// A Session is created once and handed to the backend client, which reads
// the token for every request and calls Invalidate when any call comes back
// 401. Invalidate is the only place the token is cleared on failure; it
// removes the persisted copy and notifies OnLogout listeners so the rest of
// the client can reset.
//
// # Key Types
//
//   - Session: token, resolved user, logout listeners
//   - Store: token persistence; FileStore writes an owner-only file
//
// # Usage
//
//	sess := auth.NewSession(auth.WithStore(auth.NewFileStore(path)))
//	_ = sess.Restore()
//	sess.OnLogout(func(r auth.LogoutReason) { ... })
package auth
