// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"errors"
)

// JSONExporter exports the complete transcript. Options do not filter it.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export converts a transcript to indented JSON.
func (e *JSONExporter) Export(t *Transcript) ([]byte, error) {
	if t == nil {
		return nil, errors.New("transcript is nil")
	}
	if len(t.Messages) == 0 {
		return nil, ErrEmptyTranscript
	}
	return json.MarshalIndent(t, "", "  ")
}

func (e *JSONExporter) FileExtension() string { return ".json" }

func (e *JSONExporter) MimeType() string { return "application/json" }
