// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, closer, err := New(Options{Level: "debug", Output: &buf})
	require.NoError(t, err)
	defer closer.Close()

	logger.WithField("session_id", "s1").Debug("loaded")

	assert.Contains(t, buf.String(), "session_id=s1")
	assert.Contains(t, buf.String(), "loaded")
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "nexus.log")
	logger, closer, err := New(Options{Level: "info", File: path})
	require.NoError(t, err)

	logger.Info("hello file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello file")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, closer, err := New(Options{Level: "loud"})
	require.Error(t, err)
	require.NotNil(t, closer)
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, level)

	level, err = ParseLevel(" WARN ")
	require.NoError(t, err)
	assert.Equal(t, logrus.WarnLevel, level)
}

func TestOrDiscard(t *testing.T) {
	assert.NotNil(t, OrDiscard(nil))
	l := Discard()
	assert.Equal(t, logrus.FieldLogger(l), OrDiscard(l))
}
