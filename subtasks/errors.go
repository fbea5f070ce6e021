package subtasks

import (
	"fmt"
	"strings"
)

// ConstraintError reports a rejected graph mutation: a dependency edge
// that would close a cycle, or a completion attempt with unmet
// dependencies. IDs names the offending subtask ids. The store is left
// unchanged when one of these is returned.
type ConstraintError struct {
	Reason string
	IDs    []string
}

func (e *ConstraintError) Error() string {
	if len(e.IDs) == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, strings.Join(e.IDs, ", "))
}

// IntegrityError reports a reference to an unknown subtask or an
// incomplete reorder membership. No mutation occurs.
type IntegrityError struct {
	Reason string
}

func (e *IntegrityError) Error() string {
	return e.Reason
}
