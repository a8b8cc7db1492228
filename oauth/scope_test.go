package oauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeScope(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   []string
	}{
		{"single", []string{"read"}, []string{"read"}},
		{"space separated", []string{"read write"}, []string{"read", "write"}},
		{"multiple values", []string{"read", "write"}, []string{"read", "write"}},
		{"mixed", []string{"read write", "admin"}, []string{"read", "write", "admin"}},
		{"dedupe keeps first", []string{"read write read", "write"}, []string{"read", "write"}},
		{"case sensitive", []string{"Read read"}, []string{"Read", "read"}},
		{"extra whitespace", []string{"  read \t write  "}, []string{"read", "write"}},
		{"empty", []string{}, nil},
		{"blank values", []string{"", "   "}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeScope(tt.values...))
		})
	}
}

func TestParseAndFormatScopes(t *testing.T) {
	assert.Equal(t, []string{"read", "write"}, ParseScopes("read write"))
	assert.Nil(t, ParseScopes(""))
	assert.Equal(t, "read write", FormatScopes([]string{"read", "write"}))
	assert.Equal(t, "", FormatScopes(nil))
}

func TestScopeSubset(t *testing.T) {
	granted := []string{"read", "write"}
	assert.True(t, ScopeSubset(granted, []string{"read"}))
	assert.True(t, ScopeSubset(granted, []string{"read", "write"}))
	assert.True(t, ScopeSubset(granted, nil))
	assert.False(t, ScopeSubset([]string{"read"}, []string{"read", "write"}))
	assert.False(t, ScopeSubset(granted, []string{"admin"}))
}
