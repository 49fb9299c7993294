// Package task defines the task specification and the two structured
// artifacts exchanged by the pipeline: the Producer's Solution and the
// Auditor's Validation.
package task

import (
	"errors"
	"fmt"
	"strings"
)

// Schema version tags written into every artifact.
const (
	SolutionSchemaVersion   = "solution_v1"
	ValidationSchemaVersion = "validation_v1"
)

// DeliverableType names the shape of a produced deliverable.
type DeliverableType string

const (
	DeliverableText DeliverableType = "text"
	DeliverableJSON DeliverableType = "json"
	DeliverableCode DeliverableType = "code"
)

// Valid reports whether t is one of the known deliverable types.
func (t DeliverableType) Valid() bool {
	switch t {
	case DeliverableText, DeliverableJSON, DeliverableCode:
		return true
	}
	return false
}

// ParseDeliverableType converts a case-insensitive name into a DeliverableType.
func ParseDeliverableType(raw string) (DeliverableType, error) {
	t := DeliverableType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown deliverable type %q (want text, json or code)", raw)
	}
	return t, nil
}

// Spec describes the work the Producer must do and the criteria the Auditor
// grades against. It is treated as immutable once a pipeline starts.
type Spec struct {
	TaskID             string          `json:"task_id" yaml:"task_id"`
	Goal               string          `json:"goal" yaml:"goal"`
	Input              string          `json:"input" yaml:"input"`
	AcceptanceCriteria []string        `json:"acceptance_criteria" yaml:"acceptance_criteria"`
	DeliverableType    DeliverableType `json:"deliverable_type" yaml:"deliverable_type"`
	Hints              string          `json:"hints,omitempty" yaml:"hints,omitempty"`
}

// Validate checks the fields every pipeline run depends on.
func (s Spec) Validate() error {
	var errs []error
	if strings.TrimSpace(s.TaskID) == "" {
		errs = append(errs, errors.New("task_id is required"))
	}
	if strings.TrimSpace(s.Goal) == "" {
		errs = append(errs, errors.New("goal is required"))
	}
	if !s.DeliverableType.Valid() {
		errs = append(errs, fmt.Errorf("deliverable_type %q is invalid", s.DeliverableType))
	}
	for i, criterion := range s.AcceptanceCriteria {
		if strings.TrimSpace(criterion) == "" {
			errs = append(errs, fmt.Errorf("acceptance_criteria[%d] is empty", i))
		}
	}
	return errors.Join(errs...)
}

// ModelUsed records which model produced an artifact.
type ModelUsed struct {
	Name        string  `json:"name"`
	Temperature float64 `json:"temperature"`
}

// Usage holds token counters reported by the API.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Evidence captures how a solution was generated.
type Evidence struct {
	SystemPrompt string `json:"system_prompt"`
	UsageNote    string `json:"usage_note,omitempty"`
}
