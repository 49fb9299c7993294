package pipeline

import (
	"fmt"
	"time"

	"github.com/nimec77/deepseek-agents/internal/domain/task"
	dserrors "github.com/nimec77/deepseek-agents/internal/shared/errors"
)

// State is the orchestrator's position in a run.
type State string

const (
	StateIdle      State = "idle"
	StateProducing State = "producing"
	StateProduced  State = "produced"
	StateAuditing  State = "auditing"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// IsTerminal reports whether no further transition can follow s.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateProducing
	case StateProducing:
		return to == StateProduced || to == StateFailed
	case StateProduced:
		return to == StateAuditing
	case StateAuditing:
		return to == StateCompleted || to == StateFailed
	default:
		return false
	}
}

// Transition is reported to the hook on every state change.
type Transition struct {
	TaskID string
	From   State
	To     State
	// Stage and Err are set when To is StateFailed.
	Stage task.Stage
	Err   error
	At    time.Time
}

// TransitionHook observes transitions. It runs synchronously on the
// pipeline goroutine and must not block.
type TransitionHook func(Transition)

// StageError is the terminal failure of a run.
type StageError struct {
	Stage task.Stage
	Kind  dserrors.Kind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func (e *StageError) ErrorKind() dserrors.Kind { return e.Kind }
