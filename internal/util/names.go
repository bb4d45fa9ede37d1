package util

import (
	"strings"
	"time"
)

// NormalizeName converts a user-supplied resource name into its stored
// form: lowercased, spaces replaced with hyphens, and every character
// outside [a-z0-9-_] stripped. Applied exactly once, at create.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		}
	}
	return b.String()
}

// UnixMillis returns the current wall clock as a millisecond epoch,
// the timestamp format used on all persisted documents.
func UnixMillis() int64 {
	return time.Now().UnixMilli()
}
