package tokenutil

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCount(t *testing.T) {
	assert.Zero(t, Count(""))
	assert.Positive(t, Count("hello world"))
	if loadEncoder() != nil {
		assert.Equal(t, 2, Count("hello world"))
	}
}

func TestHeuristic(t *testing.T) {
	assert.Zero(t, heuristic(" \n\t "))
	assert.Equal(t, 4, heuristic("a b c d"), "word count wins over runes/3")
	assert.Equal(t, 4, heuristic("abcdefghijkl"))
	assert.Equal(t, 1, heuristic("a"))
}

func TestPromptTokensAddsFramingPerMessage(t *testing.T) {
	assert.Zero(t, PromptTokens())
	assert.Equal(t, Count("hello world")+2*messageOverhead, PromptTokens("hello world", ""))
}

func TestFit(t *testing.T) {
	small := []string{"system", "user"}
	prompt, err := Fit(1000, 100, small...)
	require.NoError(t, err)
	assert.Equal(t, PromptTokens(small...), prompt)

	big := strings.Repeat("lorem ipsum dolor sit amet ", 200)
	prompt, err = Fit(0, 100, big)
	require.NoError(t, err, "zero window disables the check")
	assert.Greater(t, prompt, 200)

	_, err = Fit(300, 100, big)
	var overflow *OverflowError
	require.True(t, errors.As(err, &overflow))
	assert.Equal(t, 300, overflow.Window)
	assert.Equal(t, 100, overflow.Completion)
	assert.Contains(t, err.Error(), "300-token context window")

	// The completion allowance counts against the window too.
	exact := PromptTokens(small...)
	_, err = Fit(exact+10, 10, small...)
	require.NoError(t, err)
	_, err = Fit(exact+10, 11, small...)
	require.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 100))
	assert.Equal(t, "anything", Truncate("anything", 0))

	long := strings.Repeat("hello world ", 100)
	got := Truncate(long, 5)
	assert.NotEqual(t, long, got)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Less(t, len(got), len(long))
}
