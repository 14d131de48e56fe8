// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"

	"github.com/nexusai/nexus-tui/internal/conversation"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
	ExitAuth  = 3
)

// UsageError reports bad arguments or flags.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

func usageErrorf(format string, args ...any) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// ErrNotSignedIn is returned by commands that need a stored login.
var ErrNotSignedIn = fmt.Errorf("not signed in; run `nexus login` first: %w", conversation.ErrNotAuthenticated)

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	var usage *UsageError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &usage):
		return ExitUsage
	case errors.Is(err, conversation.ErrNotAuthenticated):
		return ExitAuth
	default:
		return ExitError
	}
}
