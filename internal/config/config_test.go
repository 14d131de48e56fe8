// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Default(t *testing.T) {
	cfg := Default()
	require.NotNil(t, cfg)

	assert.Equal(t, "gpt-4o", cfg.Chat.DefaultModel)
	assert.Equal(t, "New Chat", cfg.Chat.NewSessionTitle)
	assert.Equal(t, DefaultStarterPrompts, cfg.Chat.StarterPrompts)
	assert.Equal(t, "auto", cfg.UI.Theme)
	assert.NotEmpty(t, cfg.Auth.TokenFile)
	assert.NoError(t, cfg.Validate())

	// Default must not share the package-level prompt slice.
	cfg.Chat.StarterPrompts[0] = "changed"
	assert.Equal(t, "Explain quantum computing in simple terms", DefaultStarterPrompts[0])
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{
			name:    "bad scheme",
			mutate:  func(c *Config) { c.Backend.URL = "ftp://example.com" },
			wantErr: "backend.url",
		},
		{
			name:    "no host",
			mutate:  func(c *Config) { c.Backend.URL = "http://" },
			wantErr: "backend.url",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.Backend.TimeoutSecs = 0 },
			wantErr: "backend.timeout_secs",
		},
		{
			name:    "negative rate",
			mutate:  func(c *Config) { c.Backend.RequestsPerSecond = -1 },
			wantErr: "backend.requests_per_second",
		},
		{
			name:    "empty model",
			mutate:  func(c *Config) { c.Chat.DefaultModel = "  " },
			wantErr: "chat.default_model",
		},
		{
			name:    "blank prompt",
			mutate:  func(c *Config) { c.Chat.StarterPrompts = []string{"ok", ""} },
			wantErr: "chat.starter_prompts[1]",
		},
		{
			name:    "bad level",
			mutate:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: "log.level",
		},
		{
			name:    "bad theme",
			mutate:  func(c *Config) { c.UI.Theme = "neon" },
			wantErr: "ui.theme",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var verrs ValidateErrors
			require.True(t, errors.As(err, &verrs))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateCollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Backend.URL = "nope"
	cfg.UI.Theme = "neon"

	err := cfg.Validate()
	var verrs ValidateErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs, 2)
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Backend.URL, cfg.Backend.URL)
}

func TestLoadFromPath_PartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[backend]
url = "https://chat.example.com/"

[chat]
default_model = "deepseek-chat"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, "https://chat.example.com", cfg.Backend.URL, "trailing slash trimmed")
	assert.Equal(t, "deepseek-chat", cfg.Chat.DefaultModel)
	assert.Equal(t, 120, cfg.Backend.TimeoutSecs, "unset keys keep defaults")
	assert.Equal(t, DefaultStarterPrompts, cfg.Chat.StarterPrompts)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), "permissions tightened on load")
}

func TestLoadFromPath_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[ui]\ntheme = \"neon\"\n"), 0600))

	_, err := LoadFromPath(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ui.theme")
}

func TestLoadFromPath_EnvOverrides(t *testing.T) {
	t.Setenv("NEXUS_BACKEND_URL", "http://10.0.0.5:9000")
	t.Setenv("NEXUS_BACKEND_TIMEOUT_SECS", "30")
	t.Setenv("NEXUS_CHAT_STARTER_PROMPTS", "first|second")
	t.Setenv("NEXUS_UI_SHOW_TIMESTAMPS", "true")

	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:9000", cfg.Backend.URL)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout())
	assert.Equal(t, []string{"first", "second"}, cfg.Chat.StarterPrompts)
	assert.True(t, cfg.UI.ShowTimestamps)
	assert.Equal(t, "gpt-4o", cfg.Chat.DefaultModel, "unset variables leave values alone")
}

func TestLoadFromPath_BadEnvValue(t *testing.T) {
	t.Setenv("NEXUS_BACKEND_TIMEOUT_SECS", "soon")

	_, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestSaveTOML_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Backend.URL = "https://api.example.com"
	cfg.Chat.StarterPrompts = []string{"one", "two"}
	cfg.UI.Theme = "dark"
	require.NoError(t, SaveTOML(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Backend, loaded.Backend)
	assert.Equal(t, cfg.Chat, loaded.Chat)
	assert.Equal(t, "dark", loaded.UI.Theme)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveTOML(Default(), path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloads := make(chan *Config, 8)
	require.NoError(t, Watch(ctx, path, func(cfg *Config, err error) {
		if err == nil {
			reloads <- cfg
		}
	}))

	updated := Default()
	updated.Log.Level = "debug"
	require.NoError(t, SaveTOML(updated, path))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-reloads:
			if cfg.Log.Level == "debug" {
				return
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}

func TestWatch_MissingDirectory(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "gone", "config.toml"), func(*Config, error) {})
	assert.Error(t, err)
}
