package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/nimec77/deepseek-agents/internal/domain/task"
)

// ErrAborted is returned when the user interrupts the intake.
var ErrAborted = errors.New("task intake aborted")

// LineReader reads one edited line per call. *readline.Instance satisfies it.
type LineReader interface {
	SetPrompt(prompt string)
	Readline() (string, error)
}

// NewLineReader opens a readline session on the process terminal with a
// history file under the user's home directory.
func NewLineReader() (*readline.Instance, error) {
	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".deepseek-agents-history")
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "> ",
		HistoryFile:       historyFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		UniqueEditLine:    false,

		Stdin:  readline.NewCancelableStdin(os.Stdin),
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize readline: %w", err)
	}
	return rl, nil
}

// Intake collects a task through a series of prompts. newID supplies the
// task id. Unknown deliverable types fall back to text with a warning.
func (r *Renderer) Intake(ctx context.Context, in LineReader, newID func() string) (task.Spec, error) {
	goal, err := r.ask(ctx, in, "🎯 Goal: ", true)
	if err != nil {
		return task.Spec{}, err
	}
	input, err := r.ask(ctx, in, "📥 Input/context: ", false)
	if err != nil {
		return task.Spec{}, err
	}
	rawCriteria, err := r.ask(ctx, in, "✅ Acceptance criteria (comma or semicolon separated): ", false)
	if err != nil {
		return task.Spec{}, err
	}

	r.mu.Lock()
	r.printf("%s\n", r.p.info.Sprint("📦 Deliverable type: [1] text  [2] json  [3] code (enter 1/2/3 or name)"))
	r.mu.Unlock()
	rawType, err := r.ask(ctx, in, "Type: ", false)
	if err != nil {
		return task.Spec{}, err
	}
	deliverableType, ok := parseDeliverableChoice(rawType)
	if !ok {
		r.mu.Lock()
		r.printf("%s %s\n", r.p.warn.Sprint("⚠️  Unknown type, defaulting to 'text':"), rawType)
		r.mu.Unlock()
	}

	hints, err := r.ask(ctx, in, "💡 Hints (optional, Enter to skip): ", false)
	if err != nil {
		return task.Spec{}, err
	}

	spec := task.Spec{
		TaskID:             newID(),
		Goal:               goal,
		Input:              input,
		AcceptanceCriteria: SplitCriteria(rawCriteria),
		DeliverableType:    deliverableType,
		Hints:              hints,
	}
	if err := spec.Validate(); err != nil {
		return task.Spec{}, err
	}
	return spec, nil
}

// ask reads one trimmed answer. Required answers are asked again until
// non-empty.
func (r *Renderer) ask(ctx context.Context, in LineReader, prompt string, required bool) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %w", ErrAborted, err)
		}
		in.SetPrompt(prompt)
		line, err := in.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt):
			return "", ErrAborted
		case errors.Is(err, io.EOF):
			if required && strings.TrimSpace(line) == "" {
				return "", ErrAborted
			}
		case err != nil:
			return "", fmt.Errorf("read answer: %w", err)
		}
		answer := strings.TrimSpace(line)
		if answer != "" || !required {
			return answer, nil
		}
		r.mu.Lock()
		r.printf("%s\n", r.p.warn.Sprint("This field is required."))
		r.mu.Unlock()
	}
}

// SplitCriteria splits a comma, semicolon or newline separated list and
// drops empty entries.
func SplitCriteria(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func parseDeliverableChoice(raw string) (task.DeliverableType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "1", "text":
		return task.DeliverableText, true
	case "2", "json":
		return task.DeliverableJSON, true
	case "3", "code":
		return task.DeliverableCode, true
	default:
		return task.DeliverableText, false
	}
}
