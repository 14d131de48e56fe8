// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// CommandKind identifies a slash command.
type CommandKind int

const (
	CmdNone CommandKind = iota
	CmdImage
	CmdDoc
	CmdModel
	CmdLogin
	CmdLogout
	CmdMemories
	CmdForget
	CmdNew
	CmdExport
	CmdHelp
)

// Command is a parsed slash command.
type Command struct {
	Kind CommandKind
	Arg  string
}

// commandSpec documents one command for /help.
type commandSpec struct {
	name  string
	kind  CommandKind
	usage string
	desc  string
	// needsArg rejects the command without an argument.
	needsArg bool
}

var commandSpecs = []commandSpec{
	{"/image", CmdImage, "/image <path>", "attach an image to the next message", true},
	{"/doc", CmdDoc, "/doc <path>", "attach a document (.pdf, .docx, .txt)", true},
	{"/model", CmdModel, "/model <id>", "select a model", true},
	{"/login", CmdLogin, "/login [email]", "sign in with the demo login", false},
	{"/logout", CmdLogout, "/logout", "sign out", false},
	{"/memories", CmdMemories, "/memories", "list what the assistant remembers", false},
	{"/forget", CmdForget, "/forget", "clear all memories", false},
	{"/new", CmdNew, "/new", "start a new chat", false},
	{"/export", CmdExport, "/export [md|json]", "save this chat to the current directory", false},
	{"/help", CmdHelp, "/help", "show commands and keys", false},
}

// ParseCommand parses input that starts with "/". ok is false for plain
// messages; err is set for an unknown command or a missing argument.
func ParseCommand(input string) (cmd Command, ok bool, err error) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return Command{}, false, nil
	}
	name, arg, _ := strings.Cut(input, " ")
	name = strings.ToLower(name)
	arg = strings.TrimSpace(arg)

	for _, spec := range commandSpecs {
		if spec.name != name {
			continue
		}
		if spec.needsArg && arg == "" {
			return Command{}, true, fmt.Errorf("usage: %s", spec.usage)
		}
		return Command{Kind: spec.kind, Arg: arg}, true, nil
	}
	return Command{}, true, fmt.Errorf("unknown command %s (try /help)", name)
}

// CommandHelp returns one line per command.
func CommandHelp() []string {
	out := make([]string, 0, len(commandSpecs))
	for _, spec := range commandSpecs {
		out = append(out, fmt.Sprintf("%-16s %s", spec.usage, spec.desc))
	}
	return out
}

// expandPath resolves a leading "~/" against the home directory.
func expandPath(path string) string {
	path = strings.Trim(path, `"'`)
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
