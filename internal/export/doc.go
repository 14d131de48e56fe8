// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes chat transcripts to files.
//
// # Key Types
//
//   - Transcript: A session and its confirmed messages
//   - Exporter: Converts a transcript to bytes (Markdown or JSON)
//   - Options: Metadata and timestamp toggles
//
// # Usage
//
//	t := export.NewTranscript(sess, view.Messages, time.Now())
//	exp, err := export.ForFormat("md", export.DefaultOptions())
//	path, err := export.WriteFile(t, exp, ".")
//
// Provisional and failure messages never reach an export.
package export
