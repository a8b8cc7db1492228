package oauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecret_Unique(t *testing.T) {
	seen := map[string]bool{}
	for range 1000 {
		s, err := GenerateSecret()
		require.NoError(t, err)
		require.False(t, seen[s], "generated a duplicate secret")
		seen[s] = true
	}
}

func TestGenerateSecret_URLSafe(t *testing.T) {
	s, err := GenerateSecret()
	require.NoError(t, err)
	assert.Len(t, s, 43) // 32 bytes base64url, no padding
	assert.NotContains(t, s, "+")
	assert.NotContains(t, s, "/")
	assert.NotContains(t, s, "=")
}

func TestGenerateID_Unique(t *testing.T) {
	assert.NotEqual(t, GenerateID(), GenerateID())
}
