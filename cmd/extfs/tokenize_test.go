package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeSplitsOnSpaces(t *testing.T) {
	tokens, err := tokenize("echo hello f")
	require.NoError(t, err)
	assert.Equal(t, []string{"echo", "hello", "f"}, tokens)
}

func TestTokenizeQuotedSegmentIsOneToken(t *testing.T) {
	tokens, err := tokenize(`mkdir "a b"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"mkdir", "a b"}, tokens)
}

func TestTokenizeUnbalancedQuotesErrors(t *testing.T) {
	_, err := tokenize(`echo "unterminated f`)
	require.Error(t, err)
}

func TestTokenizeEmptyLine(t *testing.T) {
	tokens, err := tokenize("")
	require.NoError(t, err)
	assert.Empty(t, tokens)
}
