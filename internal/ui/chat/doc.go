// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat implements the Bubble Tea terminal interface for nexus.

The model never holds conversation state of its own. Every change goes
through a Controller (normally *conversation.Controller) inside a tea.Cmd,
and the screen is drawn from the latest conversation.View snapshot, which
arrives over a subscription as a ViewMsg.

# Layout

	+-----------+------------------------------------+
	| sessions  | header: title, model, user         |
	|           | messages / starter prompts         |
	|           | attachments, spinner               |
	|           | input                              |
	+-----------+------------------------------------+
	| status / help                                  |
	+------------------------------------------------+

The session sidebar is hidden on narrow terminals.

# Input

Enter sends the input line. Lines starting with "/" are commands:

	/image <path>   attach an image
	/doc <path>     attach a document
	/model <id>     select a model
	/login [email]  demo login
	/export [md|json] save the chat to a file
	/logout, /memories, /forget, /new, /help

When the conversation is empty, keys 1-4 on an empty input send the
matching starter prompt.
*/
package chat
