// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// BackendTimeLayout is the zone-less form the backend writes. Such times
// are UTC.
const BackendTimeLayout = "2006-01-02T15:04:05.999999"

// Timestamp is a time decoded from the backend. It accepts RFC 3339 and
// BackendTimeLayout, and encodes as RFC 3339.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// Now returns the current time as a Timestamp.
func Now() Timestamp {
	return Timestamp{Time: time.Now()}
}

// ParseTimestamp parses RFC 3339 or BackendTimeLayout.
func ParseTimestamp(s string) (Timestamp, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Timestamp{Time: t}, nil
	}
	t, err := time.ParseInLocation(BackendTimeLayout, s, time.UTC)
	if err != nil {
		return Timestamp{}, fmt.Errorf("invalid timestamp %q", s)
	}
	return Timestamp{Time: t}, nil
}

// UnmarshalJSON decodes a JSON string. null and "" leave the zero time.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalJSON encodes RFC 3339.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return t.Time.MarshalJSON()
}

// BackendString formats t the way the backend writes it.
func (t Timestamp) BackendString() string {
	return t.UTC().Format(BackendTimeLayout)
}
