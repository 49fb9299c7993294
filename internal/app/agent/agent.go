// Package agent implements the Producer and Auditor variants. Each variant
// renders its role prompt, calls the chat-completion client and parses the
// reply strictly into its artifact, spending at most one repair retry on
// unusable output.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"

	"github.com/nimec77/deepseek-agents/internal/domain/task"
	"github.com/nimec77/deepseek-agents/internal/infra/llm"
	dserrors "github.com/nimec77/deepseek-agents/internal/shared/errors"
	jsonx "github.com/nimec77/deepseek-agents/internal/shared/json"
	"github.com/nimec77/deepseek-agents/internal/shared/logging"
	tokenutil "github.com/nimec77/deepseek-agents/internal/shared/token"
	id "github.com/nimec77/deepseek-agents/internal/shared/utils/id"
)

// Completer is the slice of the LLM client an agent needs.
type Completer interface {
	SendMessagesRaw(ctx context.Context, messages []llm.Message, opts llm.RequestOptions) (*llm.RawCompletion, error)
}

// Config holds the per-role generation settings.
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	// LenientJSON runs a syntactic JSON repair pass on an unusable reply
	// before spending the repair retry.
	LenientJSON bool
	// EvidencePromptTokens caps the system prompt copied into a Solution's
	// evidence. Zero keeps it whole.
	EvidencePromptTokens int
	// ContextWindow is the model's context size in tokens. A prompt that
	// leaves less than MaxTokens of it for the reply is rejected before
	// any request is sent. Zero disables the check.
	ContextWindow int

	Now    func() time.Time
	NewID  func() string
	Logger logging.Logger
}

// Agent is one configured variant.
type Agent struct {
	role   Role
	spec   roleSpec
	client Completer
	cfg    Config
	logger logging.Logger
}

// New builds an agent for role on top of client.
func New(role Role, client Completer, cfg Config) (*Agent, error) {
	spec, ok := roles[role]
	if !ok {
		return nil, fmt.Errorf("unknown agent role %q", role)
	}
	if client == nil {
		return nil, errors.New("agent: client is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("%s agent: model is required", role)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = id.NewSolutionID
	}
	logger := cfg.Logger
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger(string(role))
	}
	return &Agent{role: role, spec: spec, client: client, cfg: cfg, logger: logger}, nil
}

// Role reports which variant a is.
func (a *Agent) Role() Role { return a.role }

// Model reports the configured model name.
func (a *Agent) Model() string { return a.cfg.Model }

// Input is the union of both variants' inputs. Solution is required only
// for the auditor.
type Input struct {
	Spec     task.Spec
	Solution *task.Solution
}

// Output carries whichever artifact the variant produced.
type Output struct {
	Solution   *task.Solution
	Validation *task.Validation
}

// Generate dispatches on the agent's role.
func (a *Agent) Generate(ctx context.Context, in Input) (Output, error) {
	switch a.role {
	case RoleProducer:
		solution, err := a.Produce(ctx, in.Spec)
		return Output{Solution: solution}, err
	case RoleAuditor:
		validation, err := a.Audit(ctx, in.Spec, in.Solution)
		return Output{Validation: validation}, err
	default:
		return Output{}, fmt.Errorf("unknown agent role %q", a.role)
	}
}

// Produce turns spec into a Solution. task_id and deliverable_type always
// mirror spec, and the solution id is the one generated for this call.
func (a *Agent) Produce(ctx context.Context, spec task.Spec) (*task.Solution, error) {
	if a.role != RoleProducer {
		return nil, a.fail(dserrors.KindInvalidRequest, "", fmt.Errorf("produce called on %s agent", a.role))
	}
	if err := spec.Validate(); err != nil {
		return nil, a.fail(dserrors.KindInvalidRequest, "", err)
	}

	solutionID := a.cfg.NewID()
	user, err := jsonx.MarshalIndent(map[string]any{
		"task_spec":    spec,
		"solution_id":  solutionID,
		"instructions": fmt.Sprintf("Produce the %s deliverable as the Solution JSON object described in the system prompt.", spec.DeliverableType),
	}, "", "  ")
	if err != nil {
		return nil, a.fail(dserrors.KindInvalidRequest, "", fmt.Errorf("encode task: %w", err))
	}

	var parsed parsedSolution
	result, err := a.exchange(ctx, spec.TaskID, string(user), func(raw string) error {
		p, err := parseSolutionReply(raw, spec)
		if err != nil {
			return err
		}
		parsed = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if parsed.taskID != "" && parsed.taskID != spec.TaskID {
		a.logger.Warn("Model echoed task_id %q, using %q", parsed.taskID, spec.TaskID)
	}
	if parsed.solutionID != "" && parsed.solutionID != solutionID {
		a.logger.Warn("Model returned solution_id %q, using %q", parsed.solutionID, solutionID)
	}
	note := parsed.usageNote
	if note == "" && result.repaired {
		note = "output repaired after one invalid reply"
	}

	evidencePrompt := a.spec.systemPrompt
	if a.cfg.EvidencePromptTokens > 0 {
		evidencePrompt = tokenutil.Truncate(evidencePrompt, a.cfg.EvidencePromptTokens)
	}

	solution := &task.Solution{
		SchemaVersion:   task.SolutionSchemaVersion,
		TaskID:          spec.TaskID,
		SolutionID:      solutionID,
		ModelUsed:       task.ModelUsed{Name: a.cfg.Model, Temperature: a.cfg.Temperature},
		DeliverableType: spec.DeliverableType,
		Deliverable:     parsed.deliverable,
		Evidence:        task.Evidence{SystemPrompt: evidencePrompt, UsageNote: note},
		Usage:           result.usage,
		CreatedAt:       a.cfg.Now().UTC(),
	}
	if err := solution.Validate(); err != nil {
		return nil, a.fail(dserrors.KindSchemaViolation, result.raw, err)
	}
	a.logger.Info("Produced solution %s for task %s (%s, %d+%d tokens)",
		solution.SolutionID, solution.TaskID, solution.DeliverableType, solution.Usage.PromptTokens, solution.Usage.CompletionTokens)
	return solution, nil
}

// Audit grades solution against spec. The returned Validation always
// references solution's id and spec's task id, whatever the model wrote.
func (a *Agent) Audit(ctx context.Context, spec task.Spec, solution *task.Solution) (*task.Validation, error) {
	if a.role != RoleAuditor {
		return nil, a.fail(dserrors.KindInvalidRequest, "", fmt.Errorf("audit called on %s agent", a.role))
	}
	if solution == nil {
		return nil, a.fail(dserrors.KindInvalidRequest, "", errors.New("solution is required"))
	}
	deliverable, err := task.MarshalDeliverable(solution.Deliverable)
	if err != nil {
		return nil, a.fail(dserrors.KindInvalidRequest, "", fmt.Errorf("encode deliverable: %w", err))
	}
	user, err := jsonx.MarshalIndent(map[string]any{
		"task_spec": spec,
		"solution": map[string]any{
			"solution_id":      solution.SolutionID,
			"deliverable_type": solution.DeliverableType,
			"deliverable":      deliverable,
		},
		"instructions": "Grade the solution against every acceptance criterion and reply with the Validation JSON object described in the system prompt.",
	}, "", "  ")
	if err != nil {
		return nil, a.fail(dserrors.KindInvalidRequest, "", fmt.Errorf("encode audit request: %w", err))
	}

	var parsed parsedValidation
	_, err = a.exchange(ctx, spec.TaskID, string(user), func(raw string) error {
		p, err := parseValidationReply(raw)
		if err != nil {
			return err
		}
		parsed = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	if parsed.solutionID != "" && parsed.solutionID != solution.SolutionID {
		a.logger.Warn("Model referenced solution_id %q, overriding with %q", parsed.solutionID, solution.SolutionID)
	}
	if parsed.taskID != "" && parsed.taskID != spec.TaskID {
		a.logger.Warn("Model referenced task_id %q, overriding with %q", parsed.taskID, spec.TaskID)
	}

	validation := parsed.validation
	validation.SchemaVersion = task.ValidationSchemaVersion
	validation.TaskID = spec.TaskID
	validation.SolutionID = solution.SolutionID
	validation.ModelUsed = task.ModelUsed{Name: a.cfg.Model, Temperature: a.cfg.Temperature}
	validation.CreatedAt = a.cfg.Now().UTC()

	a.logger.Info("Audited solution %s: verdict=%s score=%.2f checks=%d",
		validation.SolutionID, validation.Verdict, validation.Score, len(validation.Checks))
	return &validation, nil
}

type exchangeResult struct {
	raw      string
	usage    task.Usage
	repaired bool
}

// exchange sends the role prompt plus user content and feeds the reply to
// parse. An unusable reply gets one repair turn; usage covers both calls.
func (a *Agent) exchange(ctx context.Context, taskID, user string, parse func(raw string) error) (exchangeResult, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: a.spec.systemPrompt},
		{Role: llm.RoleUser, Content: user},
	}
	promptTokens, err := tokenutil.Fit(a.cfg.ContextWindow, a.cfg.MaxTokens, a.spec.systemPrompt, user)
	if err != nil {
		return exchangeResult{}, a.fail(dserrors.KindInvalidRequest, "", fmt.Errorf("task %s: %w", taskID, err))
	}
	a.logger.Debug("Prompt for task %s is ~%d tokens", taskID, promptTokens)

	first, err := a.send(ctx, taskID, messages)
	if err != nil {
		return exchangeResult{}, err
	}
	result := exchangeResult{raw: first.Content, usage: toUsage(first.Usage)}

	parseErr := a.parseReply(first.Content, parse)
	if parseErr == nil {
		return result, nil
	}

	a.logger.Warn("%s reply rejected (%v); sending one repair request", a.spec.artifact, parseErr)
	if err := ctx.Err(); err != nil {
		return exchangeResult{}, a.fail(dserrors.KindCancelled, first.Content, err)
	}
	messages = append(messages,
		llm.Message{Role: llm.RoleAssistant, Content: first.Content},
		llm.Message{Role: llm.RoleUser, Content: repairPrompt(a.spec.artifact, parseErr)},
	)

	second, err := a.send(ctx, taskID, messages)
	if err != nil {
		return exchangeResult{}, err
	}
	result.raw = second.Content
	result.usage.PromptTokens += second.Usage.PromptTokens
	result.usage.CompletionTokens += second.Usage.CompletionTokens
	result.repaired = true

	if parseErr := a.parseReply(second.Content, parse); parseErr != nil {
		return exchangeResult{}, a.fail(dserrors.KindSchemaViolation, second.Content,
			fmt.Errorf("invalid %s after repair retry: %w", a.spec.artifact, parseErr))
	}
	return result, nil
}

// parseReply applies parse to raw and, in lenient mode, to a syntactically
// repaired copy of raw. The strict error is returned when both fail.
func (a *Agent) parseReply(raw string, parse func(string) error) error {
	err := parse(raw)
	if err == nil || !a.cfg.LenientJSON {
		return err
	}
	repaired, repairErr := jsonrepair.JSONRepair(stripCodeFence(raw))
	if repairErr != nil || repaired == raw {
		return err
	}
	if parse(repaired) != nil {
		return err
	}
	a.logger.Info("Accepted %s reply after JSON repair", a.spec.artifact)
	return nil
}

func (a *Agent) send(ctx context.Context, taskID string, messages []llm.Message) (*llm.RawCompletion, error) {
	completion, err := a.client.SendMessagesRaw(ctx, messages, llm.RequestOptions{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
		Timeout:     a.cfg.Timeout,
		RequestID:   id.NewRequestID(string(a.role) + ":" + taskID),
	})
	if err != nil {
		kind := dserrors.KindOf(err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			kind = dserrors.KindCancelled
		}
		return nil, a.fail(kind, "", err)
	}
	return completion, nil
}

func (a *Agent) fail(kind dserrors.Kind, raw string, err error) *AgentError {
	return &AgentError{Role: a.role, Kind: kind, Raw: raw, Err: err}
}

func repairPrompt(artifact string, parseErr error) string {
	return fmt.Sprintf(`Your previous reply could not be used: %v.
Reply again with only the corrected %s JSON object. Do not add any text, markdown or code fences before or after it, and include every required field.`,
		parseErr, artifact)
}

// stripCodeFence removes one surrounding ``` fence, with or without a language tag.
func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return raw
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if nl := strings.IndexByte(trimmed, '\n'); nl >= 0 {
		trimmed = trimmed[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
}

func toUsage(u llm.Usage) task.Usage {
	return task.Usage{PromptTokens: u.PromptTokens, CompletionTokens: u.CompletionTokens}
}
