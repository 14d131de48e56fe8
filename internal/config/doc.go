// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for nexus.
//
// Configuration is TOML with sensible defaults, environment variable
// overrides and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - BackendConfig: Backend URL, timeout and client-side rate limit
//   - AuthConfig: Demo login defaults and token persistence
//   - ChatConfig: Default model, starter prompts, new session title
//   - UIConfig: Theme, timestamps, export directory
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (NEXUS_*)
//   - $NEXUS_CONFIG or ~/.nexus/config.toml
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	path, err := config.ConfigPathTOML()
//	cfg, err := config.LoadFromPath(path)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Follow edits to the file:
//
//	config.Watch(ctx, path, func(cfg *config.Config, err error) { ... })
package config
