// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across nexus packages.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth, PadWidth, StringWidth: terminal-column aware helpers
//   - FirstLine: first line of a multi-line string
//
// Time Utilities:
//   - FormatAge: short relative age for list columns
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	title := util.TruncateWidth(session.Title, 24)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
