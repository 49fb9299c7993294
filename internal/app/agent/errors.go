package agent

import (
	"fmt"

	dserrors "github.com/nimec77/deepseek-agents/internal/shared/errors"
)

// AgentError reports a failed generation. Client failures keep their kind;
// unusable model output after the repair retry is KindSchemaViolation with
// the last reply in Raw.
type AgentError struct {
	Role Role
	Kind dserrors.Kind
	Raw  string
	Err  error
}

func (e *AgentError) Error() string {
	return fmt.Sprintf("%s agent: %s: %v", e.Role, e.Kind, e.Err)
}

func (e *AgentError) Unwrap() error { return e.Err }

func (e *AgentError) ErrorKind() dserrors.Kind { return e.Kind }
