// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimestamp_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "zone-less with microseconds",
			input: `"2024-05-01T12:34:56.123456"`,
			want:  time.Date(2024, 5, 1, 12, 34, 56, 123456000, time.UTC),
		},
		{
			name:  "zone-less whole seconds",
			input: `"2024-05-01T12:34:56"`,
			want:  time.Date(2024, 5, 1, 12, 34, 56, 0, time.UTC),
		},
		{
			name:  "RFC 3339 UTC",
			input: `"2024-05-01T12:34:56Z"`,
			want:  time.Date(2024, 5, 1, 12, 34, 56, 0, time.UTC),
		},
		{
			name:  "RFC 3339 with offset",
			input: `"2024-05-01T14:34:56.5+02:00"`,
			want:  time.Date(2024, 5, 1, 12, 34, 56, 500000000, time.UTC),
		},
		{name: "null", input: `null`},
		{name: "empty", input: `""`},
		{name: "garbage", input: `"yesterday"`, wantErr: true},
		{name: "number", input: `1714566896`, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var ts Timestamp
			err := json.Unmarshal([]byte(tc.input), &ts)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Unmarshal(%s) err = %v, wantErr %v", tc.input, err, tc.wantErr)
			}
			if tc.wantErr {
				return
			}
			if !ts.Equal(tc.want) {
				t.Errorf("Unmarshal(%s) = %v, want %v", tc.input, ts.Time, tc.want)
			}
		})
	}
}

func TestSession_DecodesBackendTimes(t *testing.T) {
	raw := `[{"id":"a1","title":"Trip","created_at":"2024-05-01T12:34:56.123456","updated_at":"2024-05-01T12:40:00"}]`

	var sessions []Session
	if err := json.Unmarshal([]byte(raw), &sessions); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	want := time.Date(2024, 5, 1, 12, 40, 0, 0, time.UTC)
	if !sessions[0].UpdatedAt.Equal(want) {
		t.Errorf("UpdatedAt = %v, want %v", sessions[0].UpdatedAt.Time, want)
	}
}

func TestTimestamp_RoundTrip(t *testing.T) {
	orig := NewTimestamp(time.Date(2024, 5, 1, 12, 34, 56, 123456000, time.UTC))

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(data) != `"2024-05-01T12:34:56.123456Z"` {
		t.Errorf("Marshal() = %s, want RFC 3339", data)
	}

	back, err := ParseTimestamp(orig.BackendString())
	if err != nil {
		t.Fatalf("ParseTimestamp(%q) error = %v", orig.BackendString(), err)
	}
	if !back.Equal(orig.Time) {
		t.Errorf("BackendString round trip = %v, want %v", back.Time, orig.Time)
	}
}
