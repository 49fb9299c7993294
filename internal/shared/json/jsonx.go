package jsonx

import (
	"bytes"
	"errors"

	"github.com/goccy/go-json"
)

// Thin wrapper so hot paths can swap JSON implementations in one place.
var (
	Marshal       = json.Marshal
	MarshalIndent = json.MarshalIndent
	Unmarshal     = json.Unmarshal
	NewDecoder    = json.NewDecoder
	Valid         = json.Valid
)

type RawMessage = json.RawMessage

// ErrNotObject is returned by UnmarshalObject when the input is not a single JSON object.
var ErrNotObject = errors.New("expected exactly one JSON object")

// UnmarshalObject decodes data into v only if data, ignoring surrounding
// whitespace, is exactly one well-formed JSON object.
func UnmarshalObject(data []byte, v any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return ErrNotObject
	}
	return json.Unmarshal(trimmed, v)
}

// MarshalIndentNewline marshals v as two-space indented JSON with a trailing newline.
func MarshalIndentNewline(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
