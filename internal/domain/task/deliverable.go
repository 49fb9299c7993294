package task

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	jsonx "github.com/nimec77/deepseek-agents/internal/shared/json"
)

// Deliverable is the produced content. Exactly one variant exists per
// DeliverableType: TextDeliverable, JSONDeliverable or CodeDeliverable.
type Deliverable interface {
	Type() DeliverableType
	validate() error
}

// TextDeliverable is plain text content.
type TextDeliverable struct {
	Text string
}

// JSONDeliverable is an arbitrary JSON value.
type JSONDeliverable struct {
	Value jsonx.RawMessage
}

// CodeDeliverable is source code in a named language.
type CodeDeliverable struct {
	Language string `json:"language"`
	Content  string `json:"content"`
}

func (TextDeliverable) Type() DeliverableType { return DeliverableText }
func (JSONDeliverable) Type() DeliverableType { return DeliverableJSON }
func (CodeDeliverable) Type() DeliverableType { return DeliverableCode }

func (d TextDeliverable) validate() error {
	if strings.TrimSpace(d.Text) == "" {
		return errors.New("deliverable.text is empty")
	}
	return nil
}

func (d JSONDeliverable) validate() error {
	if isNullJSON(d.Value) {
		return errors.New("deliverable.json is empty")
	}
	if !jsonx.Valid(d.Value) {
		return errors.New("deliverable.json is not valid JSON")
	}
	return nil
}

func (d CodeDeliverable) validate() error {
	if strings.TrimSpace(d.Content) == "" {
		return errors.New("deliverable.code.content is empty")
	}
	return nil
}

// deliverableWire is the on-the-wire object: one key per variant.
type deliverableWire struct {
	Text *string          `json:"text,omitempty"`
	JSON jsonx.RawMessage `json:"json,omitempty"`
	Code *CodeDeliverable `json:"code,omitempty"`
}

func encodeDeliverable(d Deliverable) (deliverableWire, error) {
	switch v := d.(type) {
	case TextDeliverable:
		text := v.Text
		return deliverableWire{Text: &text}, nil
	case JSONDeliverable:
		return deliverableWire{JSON: v.Value}, nil
	case CodeDeliverable:
		code := v
		return deliverableWire{Code: &code}, nil
	case nil:
		return deliverableWire{}, nil
	default:
		return deliverableWire{}, fmt.Errorf("unsupported deliverable %T", d)
	}
}

// DecodeDeliverable interprets a raw deliverable object against the declared
// type. The variant named by want must be present and no other variant may be.
func DecodeDeliverable(want DeliverableType, raw jsonx.RawMessage) (Deliverable, error) {
	if isNullJSON(raw) {
		return nil, errors.New("deliverable is missing")
	}
	var wire deliverableWire
	if err := jsonx.UnmarshalObject(raw, &wire); err != nil {
		return nil, fmt.Errorf("deliverable must be an object: %w", err)
	}

	present := make([]DeliverableType, 0, 3)
	if wire.Text != nil {
		present = append(present, DeliverableText)
	}
	if !isNullJSON(wire.JSON) {
		present = append(present, DeliverableJSON)
	}
	if wire.Code != nil {
		present = append(present, DeliverableCode)
	}
	if len(present) != 1 || present[0] != want {
		return nil, fmt.Errorf("deliverable must contain exactly the %q variant, found %v", want, present)
	}

	var d Deliverable
	switch want {
	case DeliverableText:
		d = TextDeliverable{Text: *wire.Text}
	case DeliverableJSON:
		d = JSONDeliverable{Value: append(jsonx.RawMessage(nil), bytes.TrimSpace(wire.JSON)...)}
	case DeliverableCode:
		d = *wire.Code
	default:
		return nil, fmt.Errorf("deliverable_type %q is invalid", want)
	}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// RenderDeliverable returns the deliverable as display text.
func RenderDeliverable(d Deliverable) string {
	switch v := d.(type) {
	case TextDeliverable:
		return v.Text
	case JSONDeliverable:
		var pretty bytes.Buffer
		var value any
		if err := jsonx.Unmarshal(v.Value, &value); err == nil {
			if data, err := jsonx.MarshalIndent(value, "", "  "); err == nil {
				pretty.Write(data)
				return pretty.String()
			}
		}
		return string(v.Value)
	case CodeDeliverable:
		return v.Content
	default:
		return ""
	}
}

func isNullJSON(raw jsonx.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// MarshalDeliverable encodes d in its wire form, e.g. {"text": "..."}.
func MarshalDeliverable(d Deliverable) (jsonx.RawMessage, error) {
	wire, err := encodeDeliverable(d)
	if err != nil {
		return nil, err
	}
	return jsonx.Marshal(wire)
}
