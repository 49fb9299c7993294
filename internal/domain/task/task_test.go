package task

import (
	"strings"
	"testing"
	"time"

	jsonx "github.com/nimec77/deepseek-agents/internal/shared/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSpec() Spec {
	return Spec{
		TaskID:             "task-1",
		Goal:               "Summarize into exactly 3 bullets",
		Input:              "Some long input.",
		AcceptanceCriteria: []string{"exactly 3 bullets", "<=80 words", "no marketing fluff"},
		DeliverableType:    DeliverableText,
	}
}

func TestSpecValidate(t *testing.T) {
	require.NoError(t, sampleSpec().Validate())

	bad := sampleSpec()
	bad.TaskID = " "
	bad.DeliverableType = "yaml"
	bad.AcceptanceCriteria = []string{"ok", ""}
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task_id is required")
	assert.Contains(t, err.Error(), `deliverable_type "yaml" is invalid`)
	assert.Contains(t, err.Error(), "acceptance_criteria[1] is empty")
}

func TestParseDeliverableType(t *testing.T) {
	got, err := ParseDeliverableType(" Code ")
	require.NoError(t, err)
	assert.Equal(t, DeliverableCode, got)

	_, err = ParseDeliverableType("markdown")
	require.Error(t, err)
}

func TestDecodeDeliverableSelectsDeclaredVariant(t *testing.T) {
	d, err := DecodeDeliverable(DeliverableText, jsonx.RawMessage(`{"text":"- a\n- b\n- c"}`))
	require.NoError(t, err)
	assert.Equal(t, TextDeliverable{Text: "- a\n- b\n- c"}, d)

	d, err = DecodeDeliverable(DeliverableJSON, jsonx.RawMessage(`{"json": {"k": [1, 2]}}`))
	require.NoError(t, err)
	require.IsType(t, JSONDeliverable{}, d)
	assert.JSONEq(t, `{"k":[1,2]}`, string(d.(JSONDeliverable).Value))

	d, err = DecodeDeliverable(DeliverableCode, jsonx.RawMessage(`{"code":{"language":"go","content":"package main"}}`))
	require.NoError(t, err)
	assert.Equal(t, CodeDeliverable{Language: "go", Content: "package main"}, d)
}

func TestDecodeDeliverableRejectsMismatch(t *testing.T) {
	cases := map[string]struct {
		want DeliverableType
		raw  string
	}{
		"missing":        {DeliverableText, ``},
		"null":           {DeliverableText, `null`},
		"wrong variant":  {DeliverableText, `{"code":{"language":"go","content":"x"}}`},
		"two variants":   {DeliverableText, `{"text":"x","json":{"a":1}}`},
		"null json":      {DeliverableJSON, `{"json":null}`},
		"empty text":     {DeliverableText, `{"text":"  "}`},
		"not an object":  {DeliverableText, `"just text"`},
		"empty code":     {DeliverableCode, `{"code":{"language":"go","content":""}}`},
		"unknown type":   {DeliverableType("yaml"), `{"text":"x"}`},
		"no known field": {DeliverableText, `{"markdown":"x"}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeDeliverable(tc.want, jsonx.RawMessage(tc.raw))
			require.Error(t, err)
		})
	}
}

func TestSolutionJSONLayout(t *testing.T) {
	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	sol := Solution{
		SchemaVersion:   SolutionSchemaVersion,
		TaskID:          "task-1",
		SolutionID:      "sol-1",
		ModelUsed:       ModelUsed{Name: "deepseek-chat", Temperature: 0.2},
		DeliverableType: DeliverableText,
		Deliverable:     TextDeliverable{Text: "- a\n- b\n- c"},
		Evidence:        Evidence{SystemPrompt: "prompt"},
		Usage:           Usage{PromptTokens: 10, CompletionTokens: 5},
		CreatedAt:       created,
	}

	data, err := jsonx.Marshal(sol)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"schema_version": "solution_v1",
		"task_id": "task-1",
		"solution_id": "sol-1",
		"model_used": {"name": "deepseek-chat", "temperature": 0.2},
		"deliverable_type": "text",
		"deliverable": {"text": "- a\n- b\n- c"},
		"evidence": {"system_prompt": "prompt"},
		"usage": {"prompt_tokens": 10, "completion_tokens": 5},
		"created_at": "2025-01-02T03:04:05Z"
	}`, string(data))

	var back Solution
	require.NoError(t, jsonx.Unmarshal(data, &back))
	assert.Equal(t, sol, back)
}

func TestSolutionValidate(t *testing.T) {
	sol := &Solution{
		TaskID:          "task-1",
		SolutionID:      "sol-1",
		DeliverableType: DeliverableCode,
		Deliverable:     TextDeliverable{Text: "x"},
	}
	err := sol.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `deliverable is "text" but deliverable_type is "code"`)

	sol.Deliverable = CodeDeliverable{Language: "go", Content: "package x"}
	require.NoError(t, sol.Validate())
}

func TestValidationValidate(t *testing.T) {
	v := &Validation{
		SolutionID: "sol-1",
		Verdict:    VerdictPass,
		Score:      0.98,
		Checks:     []Check{{Criterion: "exactly 3 bullets", Pass: true, Reason: "three", Severity: SeverityMinor}},
	}
	require.NoError(t, v.Validate())

	v.Verdict = "maybe"
	v.Score = 1.5
	v.Checks[0].Severity = "blocker"
	err := v.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.True(t, strings.Contains(msg, "verdict") && strings.Contains(msg, "score") && strings.Contains(msg, "severity"), msg)
}

func TestUncoveredCriteria(t *testing.T) {
	v := &Validation{Checks: []Check{
		{Criterion: "Exactly 3 bullets"},
		{Criterion: "Output has <=80   words overall"},
		{Criterion: "Marketing fluff"},
	}}
	got := v.UncoveredCriteria(sampleSpec().AcceptanceCriteria)
	assert.Equal(t, []string{"no marketing fluff"}, got)

	reordered := &Validation{Checks: []Check{{Criterion: "Bullets: exactly 3"}}}
	assert.Empty(t, reordered.UncoveredCriteria([]string{"exactly 3 bullets"}))
}
