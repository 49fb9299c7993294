// Package tokenutil measures chat prompts against a model's context window
// with tiktoken-go. The cl100k_base ranks are loaded on first use; without
// them (no network to fetch the BPE file) counts fall back to a character
// heuristic that overestimates rather than underestimates.
package tokenutil

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// messageOverhead is the per-message framing the chat template adds on top
// of the content tokens.
const messageOverhead = 4

var (
	loadOnce sync.Once
	encoder  *tiktoken.Tiktoken
)

func loadEncoder() *tiktoken.Tiktoken {
	loadOnce.Do(func() {
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			encoder = enc
		}
	})
	return encoder
}

// Count returns the number of tokens in text.
func Count(text string) int {
	if text == "" {
		return 0
	}
	if enc := loadEncoder(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return heuristic(text)
}

// heuristic is max(runes/3, words), with at least one token for non-blank text.
func heuristic(text string) int {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	return max(len([]rune(trimmed))/3, len(strings.Fields(trimmed)), 1)
}

// PromptTokens sizes a chat prompt made of the given message contents.
func PromptTokens(contents ...string) int {
	total := 0
	for _, content := range contents {
		total += Count(content) + messageOverhead
	}
	return total
}

// OverflowError reports a prompt that leaves too little room for the reply.
type OverflowError struct {
	Prompt     int
	Completion int
	Window     int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("prompt of ~%d tokens plus %d completion tokens exceeds the %d-token context window",
		e.Prompt, e.Completion, e.Window)
}

// Fit sizes the prompt and checks that it plus the completion allowance fits
// window. A window of zero or less disables the check. The prompt size is
// returned either way.
func Fit(window, completion int, contents ...string) (int, error) {
	prompt := PromptTokens(contents...)
	if window <= 0 || prompt+completion <= window {
		return prompt, nil
	}
	return prompt, &OverflowError{Prompt: prompt, Completion: completion, Window: window}
}

// Truncate cuts text down to at most limit tokens and marks the cut with an
// ellipsis. A limit of zero or less leaves text alone.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	if enc := loadEncoder(); enc != nil {
		tokens := enc.Encode(text, nil, nil)
		if len(tokens) <= limit {
			return text
		}
		return enc.Decode(tokens[:limit]) + "..."
	}
	runes := []rune(text)
	if cut := limit * 3; cut < len(runes) {
		return string(runes[:cut]) + "..."
	}
	return text
}
