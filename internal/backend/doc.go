// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the HTTP client for the chat backend.
//
// Every request carries the bearer token from an Authenticator. A 401 from
// any endpoint invalidates the auth session in one place (Client.do), so
// callers never handle logout themselves.
//
// # Errors
//
//   - ErrUnauthorized: token rejected, session already invalidated
//   - ErrNotFound: HTTP 404
//   - ErrNetwork: no HTTP response (connection refused, timeout)
//   - *APIError: any other non-2xx status
//
// # Usage
//
//	client := backend.NewClient(cfg.Backend.URL, authSession).
//	    WithTimeout(cfg.Backend.Timeout()).
//	    WithRateLimit(cfg.Backend.RequestsPerSecond, cfg.Backend.Burst).
//	    WithLogger(log)
//	sessions, err := client.ListSessions(ctx)
package backend
