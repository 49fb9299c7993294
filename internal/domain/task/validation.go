package task

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/nimec77/deepseek-agents/internal/shared/textutil"
)

// criterionMatchThreshold is the word-set similarity above which a check is
// taken to address a criterion.
const criterionMatchThreshold = 0.75

// Verdict is the Auditor's overall judgment.
type Verdict string

const (
	VerdictPass          Verdict = "pass"
	VerdictFail          Verdict = "fail"
	VerdictNeedsRevision Verdict = "needs_revision"
)

func (v Verdict) Valid() bool {
	switch v {
	case VerdictPass, VerdictFail, VerdictNeedsRevision:
		return true
	}
	return false
}

// Severity grades a single failed or weak check.
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityMinor, SeverityMajor, SeverityCritical:
		return true
	}
	return false
}

// Check is one graded acceptance criterion.
type Check struct {
	Criterion    string   `json:"criterion"`
	Pass         bool     `json:"pass"`
	Reason       string   `json:"reason"`
	Severity     Severity `json:"severity"`
	SuggestedFix string   `json:"suggested_fix,omitempty"`
}

// Validation is the Auditor's artifact for one Solution.
type Validation struct {
	SchemaVersion    string    `json:"schema_version"`
	TaskID           string    `json:"task_id"`
	SolutionID       string    `json:"solution_id"`
	Verdict          Verdict   `json:"verdict"`
	Score            float64   `json:"score"`
	Checks           []Check   `json:"checks"`
	SuggestedRewrite *string   `json:"suggested_rewrite,omitempty"`
	ModelUsed        ModelUsed `json:"model_used"`
	CreatedAt        time.Time `json:"created_at"`
}

// Validate checks enum and range constraints.
func (v *Validation) Validate() error {
	if v == nil {
		return errors.New("validation is nil")
	}
	var errs []error
	if strings.TrimSpace(v.SolutionID) == "" {
		errs = append(errs, errors.New("solution_id is required"))
	}
	if !v.Verdict.Valid() {
		errs = append(errs, fmt.Errorf("verdict %q is invalid (want pass, fail or needs_revision)", v.Verdict))
	}
	if math.IsNaN(v.Score) || v.Score < 0 || v.Score > 1 {
		errs = append(errs, fmt.Errorf("score %v is outside [0,1]", v.Score))
	}
	for i, check := range v.Checks {
		if strings.TrimSpace(check.Criterion) == "" {
			errs = append(errs, fmt.Errorf("checks[%d].criterion is empty", i))
		}
		if !check.Severity.Valid() {
			errs = append(errs, fmt.Errorf("checks[%d].severity %q is invalid (want minor, major or critical)", i, check.Severity))
		}
	}
	return errors.Join(errs...)
}

// UncoveredCriteria returns the acceptance criteria no check refers to.
// Matching is case-insensitive and tolerates a check that quotes the
// criterion inside a longer sentence or reorders its words.
func (v *Validation) UncoveredCriteria(criteria []string) []string {
	if v == nil {
		return append([]string(nil), criteria...)
	}
	var uncovered []string
	for _, criterion := range criteria {
		want := textutil.NormalizePhrase(criterion)
		if want == "" {
			continue
		}
		covered := false
		for _, check := range v.Checks {
			got := textutil.NormalizePhrase(check.Criterion)
			if strings.Contains(got, want) || textutil.SimilarityScore(got, want) >= criterionMatchThreshold {
				covered = true
				break
			}
		}
		if !covered {
			uncovered = append(uncovered, criterion)
		}
	}
	return uncovered
}
