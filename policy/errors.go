package policy

import (
	"errors"
	"fmt"
)

// Sentinel errors for policy evaluation.
var (
	ErrPolicyNotFound = errors.New("policy: not found")
	ErrNilInput       = errors.New("policy: nil input")
)

// CompileError reports why a policy document failed to compile.
// A failed Load leaves any previously loaded policy untouched.
type CompileError struct {
	// Policy is the name the document was being loaded under.
	Policy string

	// Detail describes what is wrong with the document.
	Detail string

	// Err is the underlying parse error, if any.
	Err error
}

// Error returns the compile failure message.
func (e *CompileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("policy: compile %q: %s: %v", e.Policy, e.Detail, e.Err)
	}
	return fmt.Sprintf("policy: compile %q: %s", e.Policy, e.Detail)
}

// Unwrap returns the underlying error.
func (e *CompileError) Unwrap() error {
	return e.Err
}
