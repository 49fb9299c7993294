// Package console renders pipeline progress and artifacts for a terminal and
// collects tasks interactively.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/nimec77/deepseek-agents/internal/app/agent"
	"github.com/nimec77/deepseek-agents/internal/app/pipeline"
	"github.com/nimec77/deepseek-agents/internal/domain/task"
	"github.com/nimec77/deepseek-agents/internal/infra/llm"
	dserrors "github.com/nimec77/deepseek-agents/internal/shared/errors"
	jsonx "github.com/nimec77/deepseek-agents/internal/shared/json"
)

// Options configures a Renderer.
type Options struct {
	Color bool
	// ShowDiff prints a line diff between the deliverable and the auditor's
	// suggested rewrite instead of the bare rewrite.
	ShowDiff bool
}

type palette struct {
	title   *color.Color
	label   *color.Color
	value   *color.Color
	info    *color.Color
	ok      *color.Color
	warn    *color.Color
	fail    *color.Color
	dim     *color.Color
	added   *color.Color
	removed *color.Color
}

func newPalette(enabled bool) palette {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	return palette{
		title:   mk(color.FgHiBlue, color.Bold),
		label:   mk(color.FgGreen),
		value:   mk(color.FgHiWhite, color.Bold),
		info:    mk(color.FgBlue),
		ok:      mk(color.FgHiGreen, color.Bold),
		warn:    mk(color.FgHiYellow, color.Bold),
		fail:    mk(color.FgHiRed, color.Bold),
		dim:     mk(color.Faint),
		added:   mk(color.FgGreen),
		removed: mk(color.FgRed),
	}
}

// Renderer prints pipeline output. It implements pipeline.Sink and can be
// installed as the orchestrator's transition hook.
type Renderer struct {
	mu       sync.Mutex
	out      io.Writer
	p        palette
	showDiff bool
	solution *task.Solution
}

var _ pipeline.Sink = (*Renderer)(nil)

// NewRenderer writes to out.
func NewRenderer(out io.Writer, opts Options) *Renderer {
	return &Renderer{out: out, p: newPalette(opts.Color), showDiff: opts.ShowDiff}
}

func (r *Renderer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

// Welcome prints the banner.
func (r *Renderer) Welcome(interactive bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printf("%s\n", r.p.title.Sprint("🤖 DeepSeek Producer/Auditor pipeline"))
	if interactive {
		r.printf("%s\n\n", r.p.info.Sprint("Describe a task; the Producer solves it and the result is saved to solution.json. Ctrl+C aborts."))
		return
	}
	r.printf("%s\n\n", r.p.info.Sprint("The Producer drafts a deliverable, then the Auditor grades it against the acceptance criteria."))
}

// Task prints the task as it will be sent to the Producer.
func (r *Renderer) Task(spec task.Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, err := jsonx.MarshalIndent(spec, "", "  ")
	if err != nil {
		data = []byte(spec.Goal)
	}
	r.printf("%s\n%s\n\n", r.p.ok.Sprint("🧾 TaskSpec JSON:"), data)
}

// Transition reports stage progress; use it as a pipeline.TransitionHook.
func (r *Renderer) Transition(t pipeline.Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch t.To {
	case pipeline.StateProducing:
		r.printf("%s\n", r.p.info.Sprint("🛠️  Producer is working on the task..."))
	case pipeline.StateAuditing:
		r.printf("%s\n", r.p.info.Sprint("🔎 Auditor is grading the solution..."))
	}
}

// SolutionReady prints the Producer's artifact.
func (r *Renderer) SolutionReady(_ context.Context, solution *task.Solution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.solution = solution

	r.printf("\n%s\n", r.p.ok.Sprint("✅ Solution"))
	r.field("solution_id", solution.SolutionID)
	r.field("model", fmt.Sprintf("%s (temperature %.1f)", solution.ModelUsed.Name, solution.ModelUsed.Temperature))
	r.field("tokens", fmt.Sprintf("%d prompt / %d completion", solution.Usage.PromptTokens, solution.Usage.CompletionTokens))
	if solution.Evidence.UsageNote != "" {
		r.field("note", solution.Evidence.UsageNote)
	}
	label := string(solution.DeliverableType)
	if code, ok := solution.Deliverable.(task.CodeDeliverable); ok {
		label = "code, " + code.Language
	}
	r.printf("%s\n", r.p.label.Sprintf("│ deliverable (%s):", label))
	r.block(task.RenderDeliverable(solution.Deliverable))
	return nil
}

// ValidationReady prints the Auditor's artifact.
func (r *Renderer) ValidationReady(_ context.Context, validation *task.Validation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.printf("\n%s %s  %s\n", r.p.title.Sprint("📋 Validation"),
		r.verdictColor(validation.Verdict).Sprint(strings.ToUpper(string(validation.Verdict))),
		r.p.value.Sprintf("score %.2f", validation.Score))
	for _, check := range validation.Checks {
		mark := r.p.ok.Sprint("✓")
		if !check.Pass {
			mark = r.p.fail.Sprint("✗")
		}
		r.printf("  %s [%s] %s", mark, r.severityColor(check.Severity).Sprint(check.Severity), check.Criterion)
		if check.Reason != "" {
			r.printf("%s", r.p.dim.Sprintf(": %s", check.Reason))
		}
		r.printf("\n")
		if check.SuggestedFix != "" {
			r.printf("      %s %s\n", r.p.warn.Sprint("fix:"), check.SuggestedFix)
		}
	}

	if validation.SuggestedRewrite == nil {
		return nil
	}
	rewrite := *validation.SuggestedRewrite
	if r.showDiff && r.solution != nil && r.solution.SolutionID == validation.SolutionID {
		diff := LineDiff(task.RenderDeliverable(r.solution.Deliverable), rewrite)
		r.printf("%s\n", r.p.label.Sprintf("│ suggested rewrite (+%d -%d lines):", diff.Added, diff.Removed))
		r.diff(diff)
		return nil
	}
	r.printf("%s\n", r.p.label.Sprint("│ suggested rewrite:"))
	r.block(rewrite)
	return nil
}

// PipelineFailed prints the failing stage, its kind and a hint. Schema
// violations also show the model's last reply.
func (r *Renderer) PipelineFailed(_ context.Context, stage task.Stage, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kind := dserrors.KindOf(err)
	r.printf("\n%s %s\n", r.p.fail.Sprintf("❌ %s failed [%s]:", stage, kind), dserrors.UserMessage(err))
	r.printf("%s\n", r.p.dim.Sprintf("   %v", err))
	if tip := tipFor(err); tip != "" {
		r.printf("%s\n", r.p.warn.Sprint("💡 "+tip))
	}
	var agentErr *agent.AgentError
	if errors.As(err, &agentErr) && agentErr.Raw != "" {
		r.printf("%s\n", r.p.label.Sprint("│ last model reply:"))
		r.block(agentErr.Raw)
	}
}

// Error prints a failure that happened outside the pipeline.
func (r *Renderer) Error(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.printf("%s %s\n", r.p.fail.Sprint("❌ Error:"), dserrors.UserMessage(err))
	r.printf("%s\n", r.p.dim.Sprintf("   %v", err))
	if tip := tipFor(err); tip != "" {
		r.printf("%s\n", r.p.warn.Sprint("💡 "+tip))
	}
}

// Summary prints where the artifacts went and any coverage gaps.
func (r *Renderer) Summary(result *pipeline.Result, paths ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if result == nil {
		return
	}
	if len(result.UncoveredCriteria) > 0 {
		r.printf("\n%s\n", r.p.warn.Sprint("⚠️  No check addressed these criteria:"))
		for _, c := range result.UncoveredCriteria {
			r.printf("   - %s\n", c)
		}
	}
	if len(paths) > 0 {
		r.printf("\n%s\n", r.p.info.Sprint("💾 Saved:"))
		for _, p := range paths {
			r.printf("   %s\n", p)
		}
	}
}

func (r *Renderer) field(name, value string) {
	r.printf("%s %s\n", r.p.label.Sprintf("│ %s:", name), value)
}

func (r *Renderer) block(text string) {
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		r.printf("%s %s\n", r.p.label.Sprint("│"), line)
	}
	r.printf("%s\n", r.p.label.Sprint("└─"))
}

func (r *Renderer) diff(d DiffResult) {
	for _, line := range d.Lines {
		switch line.Op {
		case DiffAdd:
			r.printf("%s\n", r.p.added.Sprintf("+ %s", line.Text))
		case DiffRemove:
			r.printf("%s\n", r.p.removed.Sprintf("- %s", line.Text))
		default:
			r.printf("  %s\n", line.Text)
		}
	}
	r.printf("%s\n", r.p.label.Sprint("└─"))
}

func (r *Renderer) verdictColor(v task.Verdict) *color.Color {
	switch v {
	case task.VerdictPass:
		return r.p.ok
	case task.VerdictNeedsRevision:
		return r.p.warn
	default:
		return r.p.fail
	}
}

func (r *Renderer) severityColor(s task.Severity) *color.Color {
	switch s {
	case task.SeverityCritical:
		return r.p.fail
	case task.SeverityMajor:
		return r.p.warn
	default:
		return r.p.dim
	}
}

func tipFor(err error) string {
	switch dserrors.KindOf(err) {
	case dserrors.KindTransport:
		return "Check your internet connection and proxy settings."
	case dserrors.KindRateLimited:
		return "You've hit the rate limit. Wait before trying again."
	case dserrors.KindHTTP:
		var clientErr *llm.ClientError
		if errors.As(err, &clientErr) {
			switch clientErr.StatusCode {
			case 401:
				return "Check your DEEPSEEK_API_KEY environment variable."
			case 403:
				return "Your API key may not have sufficient permissions."
			}
		}
		return "Check the model name and request parameters."
	case dserrors.KindInvalidResponse:
		return "The server response was unexpected. Try again later."
	case dserrors.KindSchemaViolation:
		return "Try rephrasing the goal or enabling lenient_json."
	case dserrors.KindInvalidRequest:
		return "Check your configuration and the task file."
	default:
		return ""
	}
}
