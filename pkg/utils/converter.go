// Package utils provides small helpers shared by the CLI and the key store.
// This file contains data conversion, transformation, and formatting utilities.
package utils

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ================================================================================
// Key/Value Conversion
// ================================================================================

// ParseKeyValues converts "k=v" pairs into a map. Later pairs win.
// A pair without "=" or with an empty key is rejected.
func ParseKeyValues(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid key=value pair %q", pair)
		}
		out[k] = v
	}
	return out, nil
}

// FormatKeyValues renders m as "k=v" pairs sorted by key.
func FormatKeyValues(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+m[k])
	}
	return strings.Join(parts, ",")
}

// ================================================================================
// Time Conversion
// ================================================================================

// FormatTimestamp formats a time in RFC 3339 UTC, or "-" for the zero time.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

// UnixToTime converts Unix seconds to a UTC time.
func UnixToTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
