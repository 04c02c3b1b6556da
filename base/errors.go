package base

import "fmt"

// ProgrammingError reports a violated precondition: operating on a pruned
// vertex, double-freeing a state, removing a child that was never added, and
// so on. These are bugs in the caller, not recoverable conditions, so they are
// raised as panics carrying this type.
type ProgrammingError struct {
	msg string
}

func (e *ProgrammingError) Error() string {
	return e.msg
}

// NewProgrammingError builds a ProgrammingError for use in a panic.
func NewProgrammingError(format string, args ...interface{}) *ProgrammingError {
	return &ProgrammingError{msg: fmt.Sprintf(format, args...)}
}
