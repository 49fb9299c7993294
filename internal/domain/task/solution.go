package task

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jsonx "github.com/nimec77/deepseek-agents/internal/shared/json"
)

// Solution is the Producer's artifact for one TaskSpec.
type Solution struct {
	SchemaVersion   string
	TaskID          string
	SolutionID      string
	ModelUsed       ModelUsed
	DeliverableType DeliverableType
	Deliverable     Deliverable
	Evidence        Evidence
	Usage           Usage
	CreatedAt       time.Time
}

type solutionWire struct {
	SchemaVersion   string           `json:"schema_version"`
	TaskID          string           `json:"task_id"`
	SolutionID      string           `json:"solution_id"`
	ModelUsed       ModelUsed        `json:"model_used"`
	DeliverableType DeliverableType  `json:"deliverable_type"`
	Deliverable     jsonx.RawMessage `json:"deliverable"`
	Evidence        Evidence         `json:"evidence"`
	Usage           Usage            `json:"usage"`
	CreatedAt       time.Time        `json:"created_at"`
}

// MarshalJSON writes the artifact layout persisted as solution.json.
func (s Solution) MarshalJSON() ([]byte, error) {
	deliverable, err := MarshalDeliverable(s.Deliverable)
	if err != nil {
		return nil, err
	}
	return jsonx.Marshal(solutionWire{
		SchemaVersion:   s.SchemaVersion,
		TaskID:          s.TaskID,
		SolutionID:      s.SolutionID,
		ModelUsed:       s.ModelUsed,
		DeliverableType: s.DeliverableType,
		Deliverable:     deliverable,
		Evidence:        s.Evidence,
		Usage:           s.Usage,
		CreatedAt:       s.CreatedAt,
	})
}

// UnmarshalJSON reads a persisted solution.json, resolving the deliverable
// variant from deliverable_type.
func (s *Solution) UnmarshalJSON(data []byte) error {
	var wire solutionWire
	if err := jsonx.Unmarshal(data, &wire); err != nil {
		return err
	}
	deliverable, err := DecodeDeliverable(wire.DeliverableType, wire.Deliverable)
	if err != nil {
		return err
	}
	*s = Solution{
		SchemaVersion:   wire.SchemaVersion,
		TaskID:          wire.TaskID,
		SolutionID:      wire.SolutionID,
		ModelUsed:       wire.ModelUsed,
		DeliverableType: wire.DeliverableType,
		Deliverable:     deliverable,
		Evidence:        wire.Evidence,
		Usage:           wire.Usage,
		CreatedAt:       wire.CreatedAt,
	}
	return nil
}

// Validate checks the structural invariants of a finished Solution.
func (s *Solution) Validate() error {
	if s == nil {
		return errors.New("solution is nil")
	}
	var errs []error
	if strings.TrimSpace(s.TaskID) == "" {
		errs = append(errs, errors.New("task_id is required"))
	}
	if strings.TrimSpace(s.SolutionID) == "" {
		errs = append(errs, errors.New("solution_id is required"))
	}
	if !s.DeliverableType.Valid() {
		errs = append(errs, fmt.Errorf("deliverable_type %q is invalid", s.DeliverableType))
	}
	switch {
	case s.Deliverable == nil:
		errs = append(errs, errors.New("deliverable is required"))
	case s.Deliverable.Type() != s.DeliverableType:
		errs = append(errs, fmt.Errorf("deliverable is %q but deliverable_type is %q", s.Deliverable.Type(), s.DeliverableType))
	default:
		if err := s.Deliverable.validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.Usage.PromptTokens < 0 || s.Usage.CompletionTokens < 0 {
		errs = append(errs, errors.New("usage counters must be non-negative"))
	}
	return errors.Join(errs...)
}
