package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQRCodeUsesPrefix(t *testing.T) {
	code, err := NewQRCode("meal")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(code, "meal-"))
	assert.Len(t, strings.TrimPrefix(code, "meal-"), 24)
	assert.Equal(t, strings.ToLower(code), code)
}

func TestNewQRCodeIsRandom(t *testing.T) {
	a, err := NewQRCode("")
	require.NoError(t, err)
	b, err := NewQRCode("")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "-")
}
