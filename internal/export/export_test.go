// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/nexusai/nexus-tui/internal/model"
)

var exportTime = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func sampleTranscript() *Transcript {
	sess := model.Session{
		ID:        "s-1",
		Title:     "Go channels: a *quick* tour",
		CreatedAt: model.NewTimestamp(exportTime.Add(-time.Hour)),
		UpdatedAt: model.NewTimestamp(exportTime.Add(-time.Minute)),
	}
	msgs := []model.Message{
		{ID: "m-1", SessionID: "s-1", Role: model.RoleUser, Content: "What is a [buffered] channel?", CreatedAt: model.NewTimestamp(exportTime.Add(-50 * time.Minute))},
		{ID: "m-2", SessionID: "s-1", Role: model.RoleAssistant, Content: "A channel with **capacity**.", CreatedAt: model.NewTimestamp(exportTime.Add(-49 * time.Minute))},
		model.NewProvisionalMessage("s-1", "still sending", false),
		model.NewFailureMessage("s-1"),
	}
	return NewTranscript(sess, msgs, exportTime)
}

func TestNewTranscriptDropsLocalMessages(t *testing.T) {
	tr := sampleTranscript()
	require.Len(t, tr.Messages, 2)
	assert.Equal(t, "m-1", tr.Messages[0].ID)
	assert.Equal(t, "m-2", tr.Messages[1].ID)
}

func TestMarkdownExport(t *testing.T) {
	out, err := NewMarkdownExporter(nil).Export(sampleTranscript())
	require.NoError(t, err)
	md := string(out)

	require.True(t, strings.HasPrefix(md, "---\n"))
	parts := strings.SplitN(md, "---\n", 3)
	require.Len(t, parts, 3)

	var fm frontMatter
	require.NoError(t, yaml.Unmarshal([]byte(parts[1]), &fm))
	assert.Equal(t, "Go channels: a *quick* tour", fm.Title)
	assert.Equal(t, "s-1", fm.Session)
	assert.Equal(t, 2, fm.Messages)
	assert.Equal(t, "2025-03-14T09:26:53Z", fm.Exported)

	assert.Contains(t, md, `# Go channels: a \*quick\* tour`)
	assert.Contains(t, md, "## You *(")
	assert.Contains(t, md, `What is a \[buffered\] channel?`)
	assert.Contains(t, md, "A channel with **capacity**.")
	assert.NotContains(t, md, "still sending")
	assert.NotContains(t, md, model.SendFailureText)
}

func TestMarkdownExportWithoutMetadata(t *testing.T) {
	exp := NewMarkdownExporter(&Options{})
	out, err := exp.Export(sampleTranscript())
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "# "))
	assert.NotContains(t, md, " *(")
}

func TestMarkdownTitleWithNewline(t *testing.T) {
	tr := sampleTranscript()
	tr.Session.Title = "line one\ntitle: injected"

	out, err := NewMarkdownExporter(nil).Export(tr)
	require.NoError(t, err)

	parts := strings.SplitN(string(out), "---\n", 3)
	var fm frontMatter
	require.NoError(t, yaml.Unmarshal([]byte(parts[1]), &fm))
	assert.Equal(t, "line one\ntitle: injected", fm.Title)
}

func TestMarkdownImageMarker(t *testing.T) {
	tr := NewTranscript(model.Session{ID: "s"}, []model.Message{
		{ID: "m", Role: model.RoleUser, Content: "look", ImageURL: "https://img/1.png"},
	}, exportTime)

	out, err := NewMarkdownExporter(nil).Export(tr)
	require.NoError(t, err)
	assert.Contains(t, string(out), "*[image attached]*")
	assert.Contains(t, string(out), "# New Chat")
}

func TestJSONExport(t *testing.T) {
	out, err := NewJSONExporter(nil).Export(sampleTranscript())
	require.NoError(t, err)

	var decoded Transcript
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "s-1", decoded.Session.ID)
	assert.Len(t, decoded.Messages, 2)
	assert.True(t, decoded.ExportedAt.Equal(exportTime))
}

func TestEmptyTranscript(t *testing.T) {
	tr := NewTranscript(model.Session{ID: "s"}, nil, exportTime)
	for _, exp := range []Exporter{NewMarkdownExporter(nil), NewJSONExporter(nil)} {
		_, err := exp.Export(tr)
		assert.ErrorIs(t, err, ErrEmptyTranscript)
	}
}

func TestForFormat(t *testing.T) {
	for _, name := range []string{"", "md", "Markdown"} {
		exp, err := ForFormat(name, nil)
		require.NoError(t, err, name)
		assert.Equal(t, ".md", exp.FileExtension())
	}

	exp, err := ForFormat("json", nil)
	require.NoError(t, err)
	assert.Equal(t, "application/json", exp.MimeType())

	_, err = ForFormat("html", nil)
	assert.Error(t, err)
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")

	path, err := WriteFile(sampleTranscript(), NewJSONExporter(nil), dir)
	require.NoError(t, err)

	assert.Equal(t, "chat_Go_channels-_a_-quick-_tour_20250314_092653.json", filepath.Base(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"simple", "simple"},
		{"with spaces", "with_spaces"},
		{`a/b\c:d`, "a-b-c-d"},
		{"  ", "chat"},
		{"tab\there", "tab_here"},
		{strings.Repeat("x", 80), strings.Repeat("x", 50)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFilename(tt.in), tt.in)
	}
}
