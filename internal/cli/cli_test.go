// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexusai/nexus-tui/internal/backend/backendtest"
	"github.com/nexusai/nexus-tui/internal/config"
	"github.com/nexusai/nexus-tui/internal/conversation"
	"github.com/nexusai/nexus-tui/internal/model"
)

const testEmail = "demo@example.com"

// pngBytes is a 1x1 transparent PNG.
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// =============================================================================
// HELPERS
// =============================================================================

type env struct {
	srv       *backendtest.Server
	dir       string
	cfgPath   string
	tokenPath string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	srv := backendtest.New(t)
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Backend.URL = srv.URL
	cfg.Backend.RequestsPerSecond = 0
	cfg.Auth.TokenFile = filepath.Join(dir, "token")
	cfg.Log.File = filepath.Join(dir, "nexus.log")
	cfgPath := filepath.Join(dir, "config.toml")
	require.NoError(t, config.SaveTOML(cfg, cfgPath))

	return &env{srv: srv, dir: dir, cfgPath: cfgPath, tokenPath: cfg.Auth.TokenFile}
}

type result struct {
	stdout string
	stderr string
	code   int
	err    error
}

func (e *env) run(args ...string) result {
	root := NewRootCommand(BuildInfo{Version: "test"})
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", e.cfgPath}, args...))

	err := root.ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintf(&errOut, "Error: %v\n", err)
	}
	return result{stdout: out.String(), stderr: errOut.String(), code: ExitCode(err), err: err}
}

func (e *env) login(t *testing.T) {
	t.Helper()
	res := e.run("login")
	require.Equal(t, ExitOK, res.code, res.stderr)
}

func decodeJSON(t *testing.T, raw string, data any) *JSONResponse {
	t.Helper()
	resp := &JSONResponse{Data: data}
	require.NoError(t, json.Unmarshal([]byte(raw), resp), raw)
	require.True(t, resp.Success)
	return resp
}

// =============================================================================
// AUTH
// =============================================================================

func TestLoginWhoamiLogout(t *testing.T) {
	e := newEnv(t)

	res := e.run("login", "--name", "Ada")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Equal(t, "Signed in as Ada <demo@example.com>\n", res.stdout)
	assert.FileExists(t, e.tokenPath)

	res = e.run("whoami")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.True(t, strings.HasPrefix(res.stdout, "Ada <demo@example.com>\n"), res.stdout)
	assert.Contains(t, res.stdout, "Signed in until ")

	var who whoamiPayload
	res = e.run("whoami", "--json")
	require.Equal(t, ExitOK, res.code, res.stderr)
	decodeJSON(t, res.stdout, &who)
	assert.Equal(t, "Ada", who.User.DisplayName)
	assert.Equal(t, who.User.ID, who.Subject)
	require.NotNil(t, who.ExpiresAt)
	assert.True(t, who.ExpiresAt.After(time.Now()))

	res = e.run("logout")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.NoFileExists(t, e.tokenPath)

	res = e.run("whoami")
	assert.Equal(t, ExitAuth, res.code)
	assert.Contains(t, res.stderr, "nexus login")
}

func TestCommandsRequireLogin(t *testing.T) {
	e := newEnv(t)
	for _, args := range [][]string{
		{"sessions"},
		{"ask", "hi"},
		{"memories"},
		{"sessions", "delete", "s-1"},
	} {
		res := e.run(args...)
		assert.Equal(t, ExitAuth, res.code, "%v: %s", args, res.stderr)
	}
	assert.Empty(t, e.srv.Requests(backendtest.RouteListSessions, backendtest.RouteSendMessage))
}

func TestRejectedStoredToken(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, os.WriteFile(e.tokenPath, []byte(e.srv.ExpiredToken(testEmail)), 0o600))

	res := e.run("sessions")
	assert.Equal(t, ExitAuth, res.code, res.stderr)
	assert.NoFileExists(t, e.tokenPath, "expired token is discarded")
}

// =============================================================================
// ASK AND SESSIONS
// =============================================================================

func TestAskStartsSessionAndListsIt(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	res := e.run("ask", "Hello", "there")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Equal(t, "Echo: Hello there\n", res.stdout)

	sessions := e.srv.Sessions(testEmail)
	require.Len(t, sessions, 1)

	var listed []model.Session
	res = e.run("sessions", "--json")
	require.Equal(t, ExitOK, res.code, res.stderr)
	decodeJSON(t, res.stdout, &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, sessions[0].ID, listed[0].ID)
	assert.Equal(t, "Hello there", listed[0].Title)

	res = e.run("sessions")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, sessions[0].ID)
	assert.Contains(t, res.stdout, "Hello there")
}

func TestAskContinuesSession(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	sess := e.srv.SeedSession(testEmail, "Existing")

	var payload askPayload
	res := e.run("ask", "--session", sess.ID, "--json", "again")
	require.Equal(t, ExitOK, res.code, res.stderr)
	decodeJSON(t, res.stdout, &payload)

	assert.Equal(t, sess.ID, payload.SessionID)
	assert.Equal(t, "again", payload.User.Content)
	assert.Equal(t, "Echo: again", payload.Assistant.Content)
	assert.Len(t, e.srv.Sessions(testEmail), 1)
	assert.Len(t, e.srv.Messages(sess.ID), 2)
}

func TestAskErrors(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	img := filepath.Join(e.dir, "dot.png")
	require.NoError(t, os.WriteFile(img, pngBytes, 0o600))

	t.Run("empty", func(t *testing.T) {
		res := e.run("ask")
		assert.Equal(t, ExitUsage, res.code)
	})

	t.Run("image with text-only model", func(t *testing.T) {
		res := e.run("ask", "--model", "deepseek-chat", "--image", img, "what is this")
		assert.Equal(t, ExitError, res.code)
		assert.Contains(t, res.stderr, "does not accept images")
	})

	t.Run("missing file", func(t *testing.T) {
		res := e.run("ask", "--doc", filepath.Join(e.dir, "nope.pdf"))
		assert.Equal(t, ExitError, res.code)
	})

	assert.Empty(t, e.srv.Requests(backendtest.RouteSendMessage))

	t.Run("backend failure", func(t *testing.T) {
		e.srv.Fail(backendtest.RouteSendMessage, http.StatusInternalServerError)
		defer e.srv.Recover(backendtest.RouteSendMessage)
		res := e.run("ask", "hi")
		assert.Equal(t, ExitError, res.code)
		assert.Contains(t, res.stderr, model.SendFailureText)
	})
}

func TestAskWithDocument(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	doc := filepath.Join(e.dir, "notes.txt")
	require.NoError(t, os.WriteFile(doc, []byte("the launch is on friday"), 0o600))

	res := e.run("ask", "--doc", doc, "when?")
	require.Equal(t, ExitOK, res.code, res.stderr)

	sends := e.srv.Requests(backendtest.RouteSendMessage)
	require.Len(t, sends, 1)
	assert.Contains(t, sends[0].Content, "the launch is on friday")
	assert.Contains(t, sends[0].Content, "when?")
}

func TestSessionsTableTrimsTitles(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	long := strings.Repeat("x", sessionTitleRunes+20)
	e.srv.SeedSession(testEmail, "first line\nsecond line")
	e.srv.SeedSession(testEmail, long)

	res := e.run("sessions")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "first line")
	assert.NotContains(t, res.stdout, "second line")
	assert.NotContains(t, res.stdout, long)
	assert.Contains(t, res.stdout, strings.Repeat("x", sessionTitleRunes-3)+"...")
}

func TestSessionsDelete(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	keep := e.srv.SeedSession(testEmail, "Keep")
	drop := e.srv.SeedSession(testEmail, "Drop")

	res := e.run("sessions", "rm", drop.ID)
	require.Equal(t, ExitOK, res.code, res.stderr)

	left := e.srv.Sessions(testEmail)
	require.Len(t, left, 1)
	assert.Equal(t, keep.ID, left[0].ID)

	res = e.run("sessions", "delete", "does-not-exist")
	assert.Equal(t, ExitError, res.code)
}

func TestExport(t *testing.T) {
	e := newEnv(t)
	e.login(t)

	res := e.run("ask", "Export me")
	require.Equal(t, ExitOK, res.code, res.stderr)
	sessions := e.srv.Sessions(testEmail)
	require.Len(t, sessions, 1)
	id := sessions[0].ID

	res = e.run("export", id, "--output", "-")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "title: Export me")
	assert.Contains(t, res.stdout, "Echo: Export me")

	outDir := filepath.Join(e.dir, "exports")
	res = e.run("export", id, "--format", "json", "--output", outDir)
	require.Equal(t, ExitOK, res.code, res.stderr)
	files, err := filepath.Glob(filepath.Join(outDir, "chat_Export_me_*.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	cfg, err := config.LoadFromPath(e.cfgPath)
	require.NoError(t, err)
	cfg.UI.ExportDir = filepath.Join(e.dir, "configured")
	require.NoError(t, config.SaveTOML(cfg, e.cfgPath))

	res = e.run("export", id)
	require.Equal(t, ExitOK, res.code, res.stderr)
	files, err = filepath.Glob(filepath.Join(cfg.UI.ExportDir, "chat_Export_me_*.md"))
	require.NoError(t, err)
	assert.Len(t, files, 1)

	res = e.run("export", id, "--format", "html")
	assert.Equal(t, ExitUsage, res.code)

	empty := e.srv.SeedSession(testEmail, "Empty")
	res = e.run("export", empty.ID)
	assert.Equal(t, ExitError, res.code)
	assert.Contains(t, res.stderr, "no messages")
}

// =============================================================================
// MODELS AND MEMORIES
// =============================================================================

func TestModels(t *testing.T) {
	e := newEnv(t)

	var payload modelsPayload
	res := e.run("models", "--json")
	require.Equal(t, ExitOK, res.code, res.stderr)
	decodeJSON(t, res.stdout, &payload)
	assert.False(t, payload.Fallback)
	assert.Equal(t, model.DefaultModelID, payload.Default)
	assert.Len(t, payload.Models, len(model.FallbackModels))

	e.srv.Fail(backendtest.RouteModels, http.StatusServiceUnavailable)
	res = e.run("models")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stderr, "built-in list")
	assert.Contains(t, res.stdout, model.DefaultModelID+" *")
}

func TestMemories(t *testing.T) {
	e := newEnv(t)
	e.login(t)
	e.srv.SeedMemory(testEmail, "language", "Go", "preferences")

	res := e.run("memories")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "language")
	assert.Contains(t, res.stdout, "preferences")

	res = e.run("memories", "--clear")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Equal(t, "Memories cleared\n", res.stdout)

	res = e.run("memories")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Equal(t, "No memories stored\n", res.stdout)
}

// =============================================================================
// CONFIG AND MISC
// =============================================================================

func TestConfigCommands(t *testing.T) {
	e := newEnv(t)
	path := filepath.Join(e.dir, "fresh", "config.toml")
	e.cfgPath = path

	res := e.run("config", "path")
	assert.Equal(t, path+"\n", res.stdout)

	res = e.run("config", "init")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.FileExists(t, path)

	res = e.run("config", "init")
	assert.Equal(t, ExitUsage, res.code)

	res = e.run("config", "init", "--force")
	assert.Equal(t, ExitOK, res.code, res.stderr)

	res = e.run("config", "show")
	require.Equal(t, ExitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "[backend]")
	assert.Contains(t, res.stdout, "demo_email")
}

func TestInvalidLogLevelFlag(t *testing.T) {
	e := newEnv(t)
	res := e.run("--log-level", "loud", "models")
	assert.Equal(t, ExitUsage, res.code)
}

func TestVersion(t *testing.T) {
	e := newEnv(t)
	res := e.run("--version")
	assert.Equal(t, "nexus test\n", res.stdout)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{errors.New("boom"), ExitError},
		{usageErrorf("bad"), ExitUsage},
		{fmt.Errorf("wrapped: %w", usageErrorf("bad")), ExitUsage},
		{ErrNotSignedIn, ExitAuth},
		{conversation.ErrNotAuthenticated, ExitAuth},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExitCode(tt.err), "%v", tt.err)
	}
}
