package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimec77/deepseek-agents/internal/domain/task"
	"github.com/nimec77/deepseek-agents/internal/infra/llm"
	dserrors "github.com/nimec77/deepseek-agents/internal/shared/errors"
	"github.com/nimec77/deepseek-agents/internal/shared/logging"
	tokenutil "github.com/nimec77/deepseek-agents/internal/shared/token"
)

var fixedNow = time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

type scriptedReply struct {
	content string
	err     error
}

type scriptedClient struct {
	mu      sync.Mutex
	replies []scriptedReply
	calls   [][]llm.Message
	opts    []llm.RequestOptions
}

func script(replies ...string) *scriptedClient {
	c := &scriptedClient{}
	for _, r := range replies {
		c.replies = append(c.replies, scriptedReply{content: r})
	}
	return c
}

func (c *scriptedClient) SendMessagesRaw(ctx context.Context, messages []llm.Message, opts llm.RequestOptions) (*llm.RawCompletion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, append([]llm.Message(nil), messages...))
	c.opts = append(c.opts, opts)
	if len(c.replies) == 0 {
		return nil, errors.New("unexpected call")
	}
	next := c.replies[0]
	c.replies = c.replies[1:]
	if next.err != nil {
		return nil, next.err
	}
	return &llm.RawCompletion{
		Content: next.content,
		Usage:   llm.Usage{PromptTokens: 100, CompletionTokens: 20},
		Model:   opts.Model,
	}, nil
}

func (c *scriptedClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func newTestAgent(t *testing.T, role Role, client Completer, mutate ...func(*Config)) *Agent {
	t.Helper()
	temperature := 0.2
	if role == RoleAuditor {
		temperature = 0
	}
	cfg := Config{
		Model:       "deepseek-chat",
		Temperature: temperature,
		MaxTokens:   1024,
		Timeout:     time.Minute,
		Now:         func() time.Time { return fixedNow },
		NewID:       func() string { return "sol-fixed" },
		Logger:      logging.Nop(),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	a, err := New(role, client, cfg)
	require.NoError(t, err)
	return a
}

func bulletSpec() task.Spec {
	return task.Spec{
		TaskID:             "task-42",
		Goal:               "Summarize into exactly 3 bullets",
		Input:              "Go is a statically typed, compiled language designed at Google.",
		AcceptanceCriteria: []string{"exactly 3 bullets", "<=80 words", "no marketing fluff"},
		DeliverableType:    task.DeliverableText,
	}
}

const validTextSolution = `{
	"schema_version": "solution_v1",
	"task_id": "task-42",
	"solution_id": "sol-fixed",
	"deliverable_type": "text",
	"deliverable": {"text": "- Go is statically typed\n- Go is compiled\n- Go came from Google"},
	"evidence": {"usage_note": "three short bullets"}
}`

func TestProduceEchoesTaskIDAndDeliverableType(t *testing.T) {
	cases := []struct {
		dt          task.DeliverableType
		deliverable string
		want        task.Deliverable
	}{
		{task.DeliverableText, `{"text": "hello"}`, task.TextDeliverable{Text: "hello"}},
		{task.DeliverableJSON, `{"json": {"items": [1, 2, 3]}}`, nil},
		{task.DeliverableCode, `{"code": {"language": "go", "content": "package main"}}`, task.CodeDeliverable{Language: "go", Content: "package main"}},
	}
	for _, tc := range cases {
		t.Run(string(tc.dt), func(t *testing.T) {
			spec := bulletSpec()
			spec.DeliverableType = tc.dt
			reply := fmt.Sprintf(`{"schema_version":"solution_v1","task_id":"someone-else","solution_id":"sol-fixed","deliverable_type":%q,"deliverable":%s}`, tc.dt, tc.deliverable)
			client := script(reply)

			solution, err := newTestAgent(t, RoleProducer, client).Produce(context.Background(), spec)
			require.NoError(t, err)

			assert.Equal(t, spec.TaskID, solution.TaskID)
			assert.Equal(t, spec.DeliverableType, solution.DeliverableType)
			assert.Equal(t, spec.DeliverableType, solution.Deliverable.Type())
			if tc.want != nil {
				assert.Equal(t, tc.want, solution.Deliverable)
			}
			assert.Equal(t, "sol-fixed", solution.SolutionID)
			assert.Equal(t, task.SolutionSchemaVersion, solution.SchemaVersion)
			assert.Equal(t, 1, client.callCount())
		})
	}
}

func TestProduceStampsAgentOwnedFields(t *testing.T) {
	client := script(validTextSolution)
	a := newTestAgent(t, RoleProducer, client)

	solution, err := a.Produce(context.Background(), bulletSpec())
	require.NoError(t, err)

	assert.Equal(t, task.ModelUsed{Name: "deepseek-chat", Temperature: 0.2}, solution.ModelUsed)
	assert.Equal(t, task.Usage{PromptTokens: 100, CompletionTokens: 20}, solution.Usage)
	assert.Equal(t, fixedNow, solution.CreatedAt)
	assert.Equal(t, roles[RoleProducer].systemPrompt, solution.Evidence.SystemPrompt)
	assert.Equal(t, "three short bullets", solution.Evidence.UsageNote)

	require.Len(t, client.calls, 1)
	messages := client.calls[0]
	require.Len(t, messages, 2)
	assert.Equal(t, llm.RoleSystem, messages[0].Role)
	assert.Equal(t, roles[RoleProducer].systemPrompt, messages[0].Content)
	assert.Contains(t, messages[1].Content, `"solution_id": "sol-fixed"`)
	assert.Contains(t, messages[1].Content, `"task_id": "task-42"`)
	assert.Contains(t, messages[1].Content, "exactly 3 bullets")

	opts := client.opts[0]
	assert.Equal(t, "deepseek-chat", opts.Model)
	assert.Equal(t, 1024, opts.MaxTokens)
	assert.Equal(t, time.Minute, opts.Timeout)
	assert.Contains(t, opts.RequestID, "producer:task-42:")
}

func TestProduceRepairRetrySucceeds(t *testing.T) {
	client := script("Sure! Here is your summary: three bullets.", validTextSolution)

	solution, err := newTestAgent(t, RoleProducer, client).Produce(context.Background(), bulletSpec())
	require.NoError(t, err)
	assert.Equal(t, "- Go is statically typed\n- Go is compiled\n- Go came from Google", solution.Deliverable.(task.TextDeliverable).Text)
	assert.Equal(t, task.Usage{PromptTokens: 200, CompletionTokens: 40}, solution.Usage)

	require.Equal(t, 2, client.callCount())
	repair := client.calls[1]
	require.Len(t, repair, 4)
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "Sure! Here is your summary: three bullets."}, repair[2])
	assert.Equal(t, llm.RoleUser, repair[3].Role)
	assert.Contains(t, repair[3].Content, "could not be used")
	assert.Contains(t, repair[3].Content, "Solution JSON object")
}

func TestProduceFailsWithSchemaViolationAfterSecondBadReply(t *testing.T) {
	client := script("not json", "still not json")

	solution, err := newTestAgent(t, RoleProducer, client).Produce(context.Background(), bulletSpec())
	require.Nil(t, solution)

	var agentErr *AgentError
	require.ErrorAs(t, err, &agentErr)
	assert.Equal(t, dserrors.KindSchemaViolation, agentErr.Kind)
	assert.Equal(t, RoleProducer, agentErr.Role)
	assert.Equal(t, "still not json", agentErr.Raw)
	assert.Equal(t, dserrors.KindSchemaViolation, dserrors.KindOf(err))
	assert.Equal(t, 2, client.callCount())
}

func TestProduceRejectsWrongDeliverableVariant(t *testing.T) {
	wrong := `{"deliverable_type":"code","deliverable":{"code":{"language":"go","content":"x"}}}`
	client := script(wrong, wrong)

	_, err := newTestAgent(t, RoleProducer, client).Produce(context.Background(), bulletSpec())
	require.Error(t, err)
	assert.Equal(t, dserrors.KindSchemaViolation, dserrors.KindOf(err))
	assert.Contains(t, err.Error(), `deliverable_type must be "text"`)
}

func TestProduceLenientModeRepairsSyntaxWithoutExtraCall(t *testing.T) {
	fenced := "```json\n" + `{"deliverable_type":"text","deliverable":{"text":"hi"},}` + "\n```"

	strict := script(fenced, validTextSolution)
	_, err := newTestAgent(t, RoleProducer, strict).Produce(context.Background(), bulletSpec())
	require.NoError(t, err)
	assert.Equal(t, 2, strict.callCount())

	lenient := script(fenced)
	solution, err := newTestAgent(t, RoleProducer, lenient, func(c *Config) { c.LenientJSON = true }).Produce(context.Background(), bulletSpec())
	require.NoError(t, err)
	assert.Equal(t, task.TextDeliverable{Text: "hi"}, solution.Deliverable)
	assert.Equal(t, 1, lenient.callCount())
}

func TestProducePropagatesClientErrorKind(t *testing.T) {
	clientErr := &llm.ClientError{Kind: dserrors.KindRateLimited, StatusCode: 429, Attempts: 3, Err: errors.New("slow down")}
	client := &scriptedClient{replies: []scriptedReply{{err: clientErr}}}

	_, err := newTestAgent(t, RoleProducer, client).Produce(context.Background(), bulletSpec())
	require.Error(t, err)
	assert.Equal(t, dserrors.KindRateLimited, dserrors.KindOf(err))

	var unwrapped *llm.ClientError
	require.ErrorAs(t, err, &unwrapped)
	assert.Equal(t, 3, unwrapped.Attempts)
	assert.Equal(t, 1, client.callCount())
}

func TestProduceCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := &scriptedClient{replies: []scriptedReply{{err: &llm.ClientError{Kind: dserrors.KindCancelled, Err: context.Canceled}}}}

	_, err := newTestAgent(t, RoleProducer, client).Produce(ctx, bulletSpec())
	assert.Equal(t, dserrors.KindCancelled, dserrors.KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProduceRejectsPromptThatOverflowsContextWindow(t *testing.T) {
	client := script(validTextSolution)
	ag := newTestAgent(t, RoleProducer, client, func(c *Config) { c.ContextWindow = c.MaxTokens + 50 })

	_, err := ag.Produce(context.Background(), bulletSpec())
	assert.Equal(t, dserrors.KindInvalidRequest, dserrors.KindOf(err))
	var overflow *tokenutil.OverflowError
	require.ErrorAs(t, err, &overflow)
	assert.Equal(t, 1024, overflow.Completion)
	assert.Zero(t, client.callCount())

	roomy := newTestAgent(t, RoleProducer, client, func(c *Config) { c.ContextWindow = 64_000 })
	_, err = roomy.Produce(context.Background(), bulletSpec())
	require.NoError(t, err)
	assert.Equal(t, 1, client.callCount())
}

func TestProduceRejectsInvalidSpec(t *testing.T) {
	client := script()
	spec := bulletSpec()
	spec.Goal = ""

	_, err := newTestAgent(t, RoleProducer, client).Produce(context.Background(), spec)
	assert.Equal(t, dserrors.KindInvalidRequest, dserrors.KindOf(err))
	assert.Zero(t, client.callCount())
}

func producedSolution() *task.Solution {
	return &task.Solution{
		SchemaVersion:   task.SolutionSchemaVersion,
		TaskID:          "task-42",
		SolutionID:      "sol-real",
		DeliverableType: task.DeliverableText,
		Deliverable:     task.TextDeliverable{Text: "- a\n- b\n- c"},
	}
}

const passingValidation = `{
	"schema_version": "validation_v1",
	"task_id": "task-42",
	"solution_id": "sol-hallucinated",
	"verdict": "pass",
	"score": 0.98,
	"checks": [
		{"criterion": "exactly 3 bullets", "pass": true, "reason": "three bullets", "severity": "minor"},
		{"criterion": "<=80 words", "pass": true, "reason": "12 words", "severity": "minor"},
		{"criterion": "no marketing fluff", "pass": true, "reason": "plain wording", "severity": "minor", "suggested_fix": ""}
	],
	"suggested_rewrite": null
}`

func TestAuditOverridesSolutionID(t *testing.T) {
	client := script(passingValidation)
	a := newTestAgent(t, RoleAuditor, client, func(c *Config) { c.Model = "deepseek-reasoner" })

	validation, err := a.Audit(context.Background(), bulletSpec(), producedSolution())
	require.NoError(t, err)

	assert.Equal(t, "sol-real", validation.SolutionID)
	assert.Equal(t, "task-42", validation.TaskID)
	assert.Equal(t, task.VerdictPass, validation.Verdict)
	assert.InDelta(t, 0.98, validation.Score, 1e-9)
	assert.Len(t, validation.Checks, 3)
	assert.Nil(t, validation.SuggestedRewrite)
	assert.Equal(t, task.ValidationSchemaVersion, validation.SchemaVersion)
	assert.Equal(t, task.ModelUsed{Name: "deepseek-reasoner", Temperature: 0}, validation.ModelUsed)
	assert.Equal(t, fixedNow, validation.CreatedAt)
	assert.Empty(t, validation.UncoveredCriteria(bulletSpec().AcceptanceCriteria))

	user := client.calls[0][1].Content
	assert.Contains(t, user, `"solution_id": "sol-real"`)
	assert.Contains(t, user, `- a\n- b\n- c`)
	assert.Contains(t, user, "no marketing fluff")
}

func TestAuditRepairsOutOfRangeScore(t *testing.T) {
	bad := `{"verdict":"pass","score":1.7,"checks":[{"criterion":"exactly 3 bullets","pass":true,"reason":"ok","severity":"minor"}]}`
	client := script(bad, passingValidation)

	validation, err := newTestAgent(t, RoleAuditor, client).Audit(context.Background(), bulletSpec(), producedSolution())
	require.NoError(t, err)
	assert.InDelta(t, 0.98, validation.Score, 1e-9)
	assert.Contains(t, client.calls[1][3].Content, "score 1.7 is outside [0,1]")
}

func TestAuditRepairsCheckWithoutReason(t *testing.T) {
	bad := `{"verdict":"pass","score":1,"checks":[{"criterion":"exactly 3 bullets","pass":true,"severity":"minor"}]}`
	client := script(bad, passingValidation)

	validation, err := newTestAgent(t, RoleAuditor, client).Audit(context.Background(), bulletSpec(), producedSolution())
	require.NoError(t, err)
	assert.Equal(t, 2, client.callCount())
	assert.Contains(t, client.calls[1][len(client.calls[1])-1].Content, "reason")
	assert.Equal(t, "three bullets", validation.Checks[0].Reason)
}

func TestAuditSchemaViolationAfterRepair(t *testing.T) {
	bad := `{"verdict":"maybe","score":0.5,"checks":[]}`
	client := script(bad, bad)

	validation, err := newTestAgent(t, RoleAuditor, client).Audit(context.Background(), bulletSpec(), producedSolution())
	assert.Nil(t, validation)
	assert.Equal(t, dserrors.KindSchemaViolation, dserrors.KindOf(err))
}

func TestAuditRequiresSolution(t *testing.T) {
	_, err := newTestAgent(t, RoleAuditor, script()).Audit(context.Background(), bulletSpec(), nil)
	assert.Equal(t, dserrors.KindInvalidRequest, dserrors.KindOf(err))
}

func TestGenerateDispatchesOnRole(t *testing.T) {
	producer := newTestAgent(t, RoleProducer, script(validTextSolution))
	out, err := producer.Generate(context.Background(), Input{Spec: bulletSpec()})
	require.NoError(t, err)
	require.NotNil(t, out.Solution)
	assert.Nil(t, out.Validation)

	auditor := newTestAgent(t, RoleAuditor, script(passingValidation))
	out, err = auditor.Generate(context.Background(), Input{Spec: bulletSpec(), Solution: out.Solution})
	require.NoError(t, err)
	require.NotNil(t, out.Validation)
	assert.Equal(t, "sol-fixed", out.Validation.SolutionID)

	_, err = auditor.Produce(context.Background(), bulletSpec())
	assert.Equal(t, dserrors.KindInvalidRequest, dserrors.KindOf(err))
}

func TestParseValidationReplyRequiresFields(t *testing.T) {
	cases := map[string]string{
		"missing verdict":  `{"score":0.5,"checks":[]}`,
		"missing score":    `{"verdict":"pass","checks":[]}`,
		"missing checks":   `{"verdict":"pass","score":0.5}`,
		"check severity":   `{"verdict":"pass","score":0.5,"checks":[{"criterion":"c","pass":true,"reason":"r"}]}`,
		"check reason":     `{"verdict":"pass","score":0.5,"checks":[{"criterion":"exactly 3 bullets","pass":true,"severity":"minor"}]}`,
		"bad severity":     `{"verdict":"pass","score":0.5,"checks":[{"criterion":"c","pass":true,"severity":"blocker"}]}`,
		"wrong schema tag": `{"schema_version":"validation_v9","verdict":"pass","score":0.5,"checks":[]}`,
		"prose":            `Verdict: pass`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parseValidationReply(raw)
			assert.Error(t, err)
		})
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Role("critic"), script(), Config{Model: "m"})
	assert.Error(t, err)
	_, err = New(RoleProducer, nil, Config{Model: "m"})
	assert.Error(t, err)
	_, err = New(RoleProducer, script(), Config{})
	assert.Error(t, err)
}
