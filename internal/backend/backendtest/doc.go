// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backendtest runs an in-memory chat backend for tests.
//
// The server speaks the same JSON API as the real backend, signs HS256
// tokens, extracts text from uploaded documents and lets tests inject
// failures (Fail) or park requests (Hold) on any route.
//
//	srv := backendtest.New(t)
//	client := backend.NewClient(srv.URL, authSession)
//	gate := srv.Hold(backendtest.RouteListMessages, sessionID)
//	<-gate.Arrived()
//	gate.Release()
package backendtest
