package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "already normalized",
			input:    "my-build",
			expected: "my-build",
		},
		{
			name:     "uppercase lowered",
			input:    "MyBuild",
			expected: "mybuild",
		},
		{
			name:     "spaces become hyphens",
			input:    "my build 2",
			expected: "my-build-2",
		},
		{
			name:     "special characters stripped",
			input:    "api@server!(prod)",
			expected: "apiserverprod",
		},
		{
			name:     "underscores kept",
			input:    "repo_clone_test",
			expected: "repo_clone_test",
		},
		{
			name:     "surrounding whitespace trimmed",
			input:    "  padded  ",
			expected: "padded",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeName(tt.input))
		})
	}
}
