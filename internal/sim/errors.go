// Package sim implements the simulation controller: it drives a
// model.Model through a scenario's timeline of fault-injection actions and
// evaluates its assertions, exactly the way spec.md's play_to_end/assert
// operations require.
package sim

import "fmt"

// Kind is one of spec.md §7's error kinds.
type Kind string

const (
	KindScenarioParse              Kind = "scenario_parse"
	KindUnknownModel                Kind = "unknown_model"
	KindUnknownNode                 Kind = "unknown_node"
	KindInvalidArgument              Kind = "invalid_argument"
	KindAssertionFailed              Kind = "assertion_failed"
	KindInternalInvariantViolated    Kind = "internal_invariant_violated"
)

// Error is a typed scenario/simulation error carrying one of spec.md's
// error kinds.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
