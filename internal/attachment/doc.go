// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package attachment turns image and document files into message payloads.
//
// Images are sniffed and base64-encoded locally. Documents are sent to the
// backend for text extraction and later merged into the message text with
// Compose:
//
//	[User uploaded document: <name>]
//
//	Document Content:
//	<content>
//
//	---
//
//	User Question: <question>
package attachment
