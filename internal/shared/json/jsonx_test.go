package jsonx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalObject(t *testing.T) {
	var out struct {
		A int `json:"a"`
	}

	require.NoError(t, UnmarshalObject([]byte("  {\"a\": 3}\n"), &out))
	assert.Equal(t, 3, out.A)

	for _, input := range []string{
		"",
		"not json",
		"[1,2]",
		`"text"`,
		`{"a": 1} trailing prose`,
		"```json\n{\"a\":1}\n```",
		`{"a": 1,}`,
	} {
		assert.ErrorIs(t, UnmarshalObject([]byte(input), &out), ErrNotObject, "input %q", input)
	}
}

func TestMarshalIndentNewline(t *testing.T) {
	data, err := MarshalIndentNewline(map[string]int{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}\n", string(data))
}
