package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Date layouts accepted on the wire, tried in order.
var wireTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses a timestamp string in any of the formats clients
// are known to send.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range wireTimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", s)
}

// parseWireTime decodes a raw JSON date value. Strings go through the
// layout list, bare numbers are treated as epoch milliseconds, and a
// missing or null value maps to the zero time so validation can report it.
func parseWireTime(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		if s == "" {
			return time.Time{}, nil
		}
		ts, err := ParseTimestamp(s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse transaction date: %w", err)
		}
		return ts, nil
	}

	millis, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse transaction date %s: %w", raw, err)
	}
	return time.UnixMilli(millis).UTC(), nil
}
