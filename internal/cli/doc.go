// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package cli provides the nexus command line.

Running nexus with no subcommand starts the terminal UI. The subcommands
drive the same conversation controller without a screen:

	nexus login [email] [--name NAME]   demo login, token saved to auth.token_file
	nexus logout
	nexus whoami
	nexus sessions [--json]             list chats, most recent first
	nexus sessions delete <id>
	nexus models [--json]               model catalog (fallback when unreachable)
	nexus ask [--session ID] [--model ID] [--image PATH] [--doc PATH] <text>
	nexus memories [--clear] [--json]
	nexus export <id> [--format md|json] [--output DIR|-]
	nexus config show|path|init

# Global Flags

	--config PATH       config file (default ~/.nexus/config.toml or $NEXUS_CONFIG)
	--backend-url URL   overrides backend.url
	--log-level LEVEL   overrides log.level

# Exit Codes

ExitCode maps errors to process exit codes: 2 for usage errors, 3 when a
command needs a login that is not there, 1 otherwise.
*/
package cli
