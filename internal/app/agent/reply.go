package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nimec77/deepseek-agents/internal/domain/task"
	jsonx "github.com/nimec77/deepseek-agents/internal/shared/json"
)

// The reply structs hold only what the model is asked to write. Pointers mark
// required fields so a missing key is distinguishable from a zero value.

type solutionReply struct {
	SchemaVersion   *string               `json:"schema_version"`
	TaskID          *string               `json:"task_id"`
	SolutionID      *string               `json:"solution_id"`
	DeliverableType *task.DeliverableType `json:"deliverable_type"`
	Deliverable     jsonx.RawMessage      `json:"deliverable"`
	Evidence        *struct {
		UsageNote string `json:"usage_note"`
	} `json:"evidence"`
}

type checkReply struct {
	Criterion    *string        `json:"criterion"`
	Pass         *bool          `json:"pass"`
	Reason       *string        `json:"reason"`
	Severity     *task.Severity `json:"severity"`
	SuggestedFix *string        `json:"suggested_fix"`
}

type validationReply struct {
	SchemaVersion    *string       `json:"schema_version"`
	TaskID           *string       `json:"task_id"`
	SolutionID       *string       `json:"solution_id"`
	Verdict          *task.Verdict `json:"verdict"`
	Score            *float64      `json:"score"`
	Checks           *[]checkReply `json:"checks"`
	SuggestedRewrite *string       `json:"suggested_rewrite"`
}

// parsedSolution is the model-owned part of a Solution.
type parsedSolution struct {
	solutionID  string
	deliverable task.Deliverable
	usageNote   string
	taskID      string
}

func parseSolutionReply(raw string, spec task.Spec) (parsedSolution, error) {
	var reply solutionReply
	if err := jsonx.UnmarshalObject([]byte(raw), &reply); err != nil {
		return parsedSolution{}, fmt.Errorf("reply is not a single JSON object: %w", err)
	}

	var errs []error
	if reply.SchemaVersion != nil && *reply.SchemaVersion != task.SolutionSchemaVersion {
		errs = append(errs, fmt.Errorf("schema_version must be %q, got %q", task.SolutionSchemaVersion, *reply.SchemaVersion))
	}
	if reply.DeliverableType == nil {
		errs = append(errs, errors.New("deliverable_type is missing"))
	} else if *reply.DeliverableType != spec.DeliverableType {
		errs = append(errs, fmt.Errorf("deliverable_type must be %q, got %q", spec.DeliverableType, *reply.DeliverableType))
	}
	deliverable, err := task.DecodeDeliverable(spec.DeliverableType, reply.Deliverable)
	if err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return parsedSolution{}, err
	}

	out := parsedSolution{deliverable: deliverable}
	if reply.SolutionID != nil {
		out.solutionID = strings.TrimSpace(*reply.SolutionID)
	}
	if reply.TaskID != nil {
		out.taskID = *reply.TaskID
	}
	if reply.Evidence != nil {
		out.usageNote = strings.TrimSpace(reply.Evidence.UsageNote)
	}
	return out, nil
}

// parsedValidation is the model-owned part of a Validation plus the ids the
// model claimed, kept only for mismatch warnings.
type parsedValidation struct {
	validation task.Validation
	taskID     string
	solutionID string
}

func parseValidationReply(raw string) (parsedValidation, error) {
	var reply validationReply
	if err := jsonx.UnmarshalObject([]byte(raw), &reply); err != nil {
		return parsedValidation{}, fmt.Errorf("reply is not a single JSON object: %w", err)
	}

	var errs []error
	if reply.SchemaVersion != nil && *reply.SchemaVersion != task.ValidationSchemaVersion {
		errs = append(errs, fmt.Errorf("schema_version must be %q, got %q", task.ValidationSchemaVersion, *reply.SchemaVersion))
	}
	if reply.Verdict == nil {
		errs = append(errs, errors.New("verdict is missing"))
	}
	if reply.Score == nil {
		errs = append(errs, errors.New("score is missing"))
	}
	if reply.Checks == nil {
		errs = append(errs, errors.New("checks is missing"))
	}
	if err := errors.Join(errs...); err != nil {
		return parsedValidation{}, err
	}

	v := task.Validation{
		Verdict: *reply.Verdict,
		Score:   *reply.Score,
		Checks:  make([]task.Check, 0, len(*reply.Checks)),
	}
	for i, c := range *reply.Checks {
		if c.Criterion == nil || c.Pass == nil || c.Reason == nil || c.Severity == nil {
			errs = append(errs, fmt.Errorf("checks[%d] needs criterion, pass, reason and severity", i))
			continue
		}
		check := task.Check{
			Criterion: *c.Criterion,
			Pass:      *c.Pass,
			Reason:    *c.Reason,
			Severity:  *c.Severity,
		}
		if c.SuggestedFix != nil {
			check.SuggestedFix = strings.TrimSpace(*c.SuggestedFix)
		}
		v.Checks = append(v.Checks, check)
	}
	if reply.SuggestedRewrite != nil && strings.TrimSpace(*reply.SuggestedRewrite) != "" {
		rewrite := *reply.SuggestedRewrite
		v.SuggestedRewrite = &rewrite
	}

	out := parsedValidation{validation: v}
	if reply.TaskID != nil {
		out.taskID = *reply.TaskID
	}
	if reply.SolutionID != nil {
		out.solutionID = *reply.SolutionID
	}

	// Ids are stamped by the caller; fill a placeholder so Validate only
	// judges the model-owned fields.
	stamped := v
	stamped.SolutionID = "-"
	errs = append(errs, stamped.Validate())
	if err := errors.Join(errs...); err != nil {
		return parsedValidation{}, err
	}
	return out, nil
}
