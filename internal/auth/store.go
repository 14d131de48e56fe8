// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"fmt"
	"os"
	"strings"

	"github.com/nexusai/nexus-tui/internal/util"
)

// Store persists the access token between runs.
type Store interface {
	// Load returns the saved token, or "" when none is saved.
	Load() (string, error)
	Save(token string) error
	// Clear removes the saved token. Clearing an empty store succeeds.
	Clear() error
}

// FileStore keeps the token in a single owner-only file.
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the token file path.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the token file.
func (f *FileStore) Load() (string, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save writes the token with 0600 permissions inside a 0700 directory.
func (f *FileStore) Save(token string) error {
	if err := util.AtomicWriteFileWithDir(f.path, []byte(token+"\n"), 0600, 0700); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

// Clear deletes the token file.
func (f *FileStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}
