// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input   string
		wantOK  bool
		wantErr bool
		want    Command
	}{
		{"hello", false, false, Command{}},
		{"  hello /image x", false, false, Command{}},
		{"/image ~/cat.png", true, false, Command{Kind: CmdImage, Arg: "~/cat.png"}},
		{"/IMAGE a.png", true, false, Command{Kind: CmdImage, Arg: "a.png"}},
		{"/doc  report.pdf ", true, false, Command{Kind: CmdDoc, Arg: "report.pdf"}},
		{"/model deepseek-chat", true, false, Command{Kind: CmdModel, Arg: "deepseek-chat"}},
		{"/login", true, false, Command{Kind: CmdLogin}},
		{"/login me@example.com", true, false, Command{Kind: CmdLogin, Arg: "me@example.com"}},
		{"/logout", true, false, Command{Kind: CmdLogout}},
		{"/memories", true, false, Command{Kind: CmdMemories}},
		{"/forget", true, false, Command{Kind: CmdForget}},
		{"/new", true, false, Command{Kind: CmdNew}},
		{"/help", true, false, Command{Kind: CmdHelp}},
		{"/export", true, false, Command{Kind: CmdExport}},
		{"/export json", true, false, Command{Kind: CmdExport, Arg: "json"}},
		{"/image", true, true, Command{}},
		{"/model   ", true, true, Command{}},
		{"/bogus", true, true, Command{}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok, err := ParseCommand(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseCommand(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCommand(%q) err = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseCommand_UsageMessage(t *testing.T) {
	_, _, err := ParseCommand("/doc")
	if err == nil || !strings.Contains(err.Error(), "/doc <path>") {
		t.Errorf("err = %v, want usage for /doc", err)
	}
}

func TestCommandHelp(t *testing.T) {
	lines := CommandHelp()
	if len(lines) != len(commandSpecs) {
		t.Fatalf("CommandHelp() returned %d lines, want %d", len(lines), len(commandSpecs))
	}
	for i, spec := range commandSpecs {
		if !strings.HasPrefix(lines[i], spec.usage) {
			t.Errorf("line %d = %q, want prefix %q", i, lines[i], spec.usage)
		}
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := []struct {
		in   string
		want string
	}{
		{"~/a.png", filepath.Join(home, "a.png")},
		{"~", home},
		{`"~/with space.pdf"`, filepath.Join(home, "with space.pdf")},
		{"'/tmp/x.txt'", "/tmp/x.txt"},
		{"rel/path.txt", "rel/path.txt"},
		{"~user/x", "~user/x"},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
