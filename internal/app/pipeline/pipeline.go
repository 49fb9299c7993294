// Package pipeline runs the Producer then the Auditor over one task and hands
// each artifact to the configured sinks as soon as its stage succeeds.
//
// A run moves idle -> producing -> produced -> auditing -> completed. A
// failure in producing or auditing ends the run in failed and the next stage
// is never attempted.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nimec77/deepseek-agents/internal/domain/task"
	"github.com/nimec77/deepseek-agents/internal/infra/observability"
	dserrors "github.com/nimec77/deepseek-agents/internal/shared/errors"
	"github.com/nimec77/deepseek-agents/internal/shared/logging"
)

// Producer turns a task into a Solution.
type Producer interface {
	Produce(ctx context.Context, spec task.Spec) (*task.Solution, error)
}

// Auditor grades a Solution against its task.
type Auditor interface {
	Audit(ctx context.Context, spec task.Spec, solution *task.Solution) (*task.Validation, error)
}

// Sink receives artifacts as stages complete. An error from SolutionReady
// fails the producing stage; one from ValidationReady fails auditing.
type Sink interface {
	SolutionReady(ctx context.Context, solution *task.Solution) error
	ValidationReady(ctx context.Context, validation *task.Validation) error
	PipelineFailed(ctx context.Context, stage task.Stage, err error)
}

// Retractor is implemented by sinks that can take back an artifact they
// already accepted. When a later sink rejects the same artifact, earlier
// sinks that implement it are asked to retract before the stage fails.
type Retractor interface {
	Retract(ctx context.Context, stage task.Stage) error
}

// StageMetrics records stage outcomes.
type StageMetrics interface {
	RecordStage(ctx context.Context, stage, status string, duration time.Duration)
}

// Tracer starts stage spans.
type Tracer interface {
	StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span)
}

// Options configures an Orchestrator. Everything is optional.
type Options struct {
	// ProducerOnly stops the run at StateProduced.
	ProducerOnly bool
	Sinks        []Sink
	OnTransition TransitionHook
	Metrics      StageMetrics
	Tracer       Tracer
	Logger       logging.Logger
	Now          func() time.Time
}

// Result describes a finished run. On failure it still carries whatever
// artifacts were produced before the failing stage.
type Result struct {
	TaskID     string
	State      State
	Solution   *task.Solution
	Validation *task.Validation
	// UncoveredCriteria lists acceptance criteria no check addressed.
	UncoveredCriteria []string
	// FailedStage is set when State is StateFailed.
	FailedStage task.Stage
}

// Orchestrator sequences the two agents. It holds no per-run state and may
// be reused for successive runs.
type Orchestrator struct {
	producer Producer
	auditor  Auditor
	opts     Options
	logger   logging.Logger
}

// New builds an orchestrator. auditor may be nil only in producer-only mode.
func New(producer Producer, auditor Auditor, opts Options) (*Orchestrator, error) {
	if producer == nil {
		return nil, errors.New("pipeline: producer is required")
	}
	if auditor == nil && !opts.ProducerOnly {
		return nil, errors.New("pipeline: auditor is required unless running producer-only")
	}
	if opts.Tracer == nil {
		opts.Tracer = (*observability.TracerProvider)(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logging.IsNil(logger) {
		logger = logging.NewComponentLogger("pipeline")
	}
	return &Orchestrator{producer: producer, auditor: auditor, opts: opts, logger: logger}, nil
}

// Run executes one pipeline over spec. The returned error, when non-nil, is
// a *StageError; the Result is returned in both cases.
func (o *Orchestrator) Run(ctx context.Context, spec task.Spec) (*Result, error) {
	r := &run{o: o, spec: spec, state: StateIdle, result: &Result{TaskID: spec.TaskID, State: StateIdle}}

	ctx, span := o.opts.Tracer.StartSpan(ctx, observability.SpanPipelineRun,
		attribute.String(observability.AttrTaskID, spec.TaskID))
	defer span.End()

	o.logger.Info("Starting pipeline for task %s (%s, %d criteria)", spec.TaskID, spec.DeliverableType, len(spec.AcceptanceCriteria))

	if err := r.transition(StateProducing); err != nil {
		return r.result, err
	}
	solution, err := r.produce(ctx)
	if err != nil {
		return r.failRun(ctx, span, task.StageProducing, err)
	}
	r.result.Solution = solution
	if err := r.transition(StateProduced); err != nil {
		return r.result, err
	}
	span.SetAttributes(attribute.String(observability.AttrSolutionID, solution.SolutionID))

	if o.opts.ProducerOnly {
		o.logger.Info("Producer-only run for task %s stops after the solution", spec.TaskID)
		return r.result, nil
	}

	if err := r.transition(StateAuditing); err != nil {
		return r.result, err
	}
	validation, err := r.audit(ctx, solution)
	if err != nil {
		return r.failRun(ctx, span, task.StageAuditing, err)
	}
	r.result.Validation = validation
	span.SetAttributes(attribute.String(observability.AttrVerdict, string(validation.Verdict)))

	if uncovered := validation.UncoveredCriteria(spec.AcceptanceCriteria); len(uncovered) > 0 {
		o.logger.Warn("Validation %s has no check for %d criteria: %q", solution.SolutionID, len(uncovered), uncovered)
		r.result.UncoveredCriteria = uncovered
	}

	if err := r.transition(StateCompleted); err != nil {
		return r.result, err
	}
	o.logger.Info("Pipeline for task %s completed: verdict=%s score=%.2f", spec.TaskID, validation.Verdict, validation.Score)
	return r.result, nil
}

// run is the state of a single Run call.
type run struct {
	o      *Orchestrator
	spec   task.Spec
	state  State
	result *Result
}

func (r *run) transition(to State) error {
	return r.transitionWith(to, "", nil)
}

func (r *run) transitionWith(to State, stage task.Stage, cause error) error {
	from := r.state
	if !isAllowedTransition(from, to) {
		return &StageError{Stage: stage, Kind: dserrors.KindUnknown, Err: fmt.Errorf("disallowed transition %s -> %s", from, to)}
	}
	r.state = to
	r.result.State = to
	r.o.logger.Debug("Task %s: %s -> %s", r.spec.TaskID, from, to)
	if r.o.opts.OnTransition != nil {
		r.o.opts.OnTransition(Transition{
			TaskID: r.spec.TaskID,
			From:   from,
			To:     to,
			Stage:  stage,
			Err:    cause,
			At:     r.o.opts.Now(),
		})
	}
	return nil
}

func (r *run) produce(ctx context.Context) (*task.Solution, error) {
	var solution *task.Solution
	err := r.stage(ctx, task.StageProducing, observability.SpanPipelineProduce, func(ctx context.Context) error {
		s, err := r.o.producer.Produce(ctx, r.spec)
		if err != nil {
			return err
		}
		for i, sink := range r.o.opts.Sinks {
			if err := sink.SolutionReady(ctx, s); err != nil {
				r.retract(ctx, task.StageProducing, i)
				return fmt.Errorf("deliver solution %s: %w", s.SolutionID, err)
			}
		}
		solution = s
		return nil
	})
	return solution, err
}

func (r *run) audit(ctx context.Context, solution *task.Solution) (*task.Validation, error) {
	var validation *task.Validation
	err := r.stage(ctx, task.StageAuditing, observability.SpanPipelineAudit, func(ctx context.Context) error {
		v, err := r.o.auditor.Audit(ctx, r.spec, solution)
		if err != nil {
			return err
		}
		for i, sink := range r.o.opts.Sinks {
			if err := sink.ValidationReady(ctx, v); err != nil {
				r.retract(ctx, task.StageAuditing, i)
				return fmt.Errorf("deliver validation for %s: %w", v.SolutionID, err)
			}
		}
		validation = v
		return nil
	})
	return validation, err
}

// retract asks the sinks before index failed to take back the stage's
// artifact.
func (r *run) retract(ctx context.Context, stage task.Stage, failed int) {
	ctx = context.WithoutCancel(ctx)
	for _, sink := range r.o.opts.Sinks[:failed] {
		retractor, ok := sink.(Retractor)
		if !ok {
			continue
		}
		if err := retractor.Retract(ctx, stage); err != nil {
			r.o.logger.Warn("Task %s: retract %s artifact: %v", r.spec.TaskID, stage, err)
		}
	}
}

// stage runs fn inside a span and records its outcome. A context that is
// already done fails the stage without calling fn.
func (r *run) stage(ctx context.Context, stage task.Stage, spanName string, fn func(context.Context) error) error {
	ctx, span := r.o.opts.Tracer.StartSpan(ctx, spanName,
		attribute.String(observability.AttrTaskID, r.spec.TaskID),
		attribute.String(observability.AttrStage, string(stage)))
	defer span.End()

	start := r.o.opts.Now()
	err := ctx.Err()
	if err == nil {
		err = fn(ctx)
	}
	if err != nil {
		err = stageError(ctx, stage, err)
	}

	status := "success"
	if err != nil {
		status = string(dserrors.KindOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		span.SetAttributes(attribute.String(observability.AttrErrorKind, status))
	}
	if r.o.opts.Metrics != nil {
		r.o.opts.Metrics.RecordStage(ctx, string(stage), status, r.o.opts.Now().Sub(start))
	}
	return err
}

func stageError(ctx context.Context, stage task.Stage, err error) *StageError {
	kind := dserrors.KindOf(err)
	if ctx.Err() != nil {
		kind = dserrors.KindCancelled
	}
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

func (r *run) failRun(ctx context.Context, span trace.Span, stage task.Stage, err error) (*Result, error) {
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		stageErr = stageError(ctx, stage, err)
	}
	r.result.FailedStage = stage
	if terr := r.transitionWith(StateFailed, stage, stageErr); terr != nil {
		return r.result, terr
	}
	span.SetStatus(codes.Error, string(stageErr.Kind))

	r.o.logger.Error("Pipeline for task %s failed in %s: %v", r.spec.TaskID, stage, stageErr)
	// Sinks still run after cancellation so failure reports reach the console.
	notifyCtx := context.WithoutCancel(ctx)
	for _, sink := range r.o.opts.Sinks {
		sink.PipelineFailed(notifyCtx, stage, stageErr)
	}
	return r.result, stageErr
}
