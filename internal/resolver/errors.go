package resolver

import (
	"errors"
	"fmt"
)

// Process exit codes. ExitConflictPending is distinguished so calling
// automation can branch on "needs a human".
const (
	ExitOK              = 0
	ExitFailure         = 1
	ExitConflictPending = 2
)

// UsageError indicates a malformed or incomplete invocation, such as a missing
// branch with a detached HEAD.
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("usage: %s", e.Reason)
}

// PreconditionError indicates the repository is not in a state the resolver is
// willing to mutate. Nothing has been changed when this is returned.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed: %s", e.Reason)
}

// CheckoutError indicates the target branch could not be checked out.
type CheckoutError struct {
	Branch string
	Err    error
}

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("checkout %s: %v", e.Branch, e.Err)
}

func (e *CheckoutError) Unwrap() error {
	return e.Err
}

// DivergedBranchError indicates the branch and its upstream have diverged, so
// the fast-forward-only pull refused to proceed. This is a deliberate guard
// against silently creating a merge commit on the branch itself.
type DivergedBranchError struct {
	Branch string
	Err    error
}

func (e *DivergedBranchError) Error() string {
	return fmt.Sprintf("branch %s has diverged from its upstream; reconcile it manually before re-running", e.Branch)
}

func (e *DivergedBranchError) Unwrap() error {
	return e.Err
}

// ExitCodeForError maps a Run error onto a process exit code. Every error,
// including raw git failures, is an ExitFailure; outcome-based codes come from
// Outcome.ExitCode.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitOK
	}
	return ExitFailure
}

// IsUsage reports whether err represents a usage problem, so the CLI can print
// help text alongside the message.
func IsUsage(err error) bool {
	var usageErr *UsageError
	return errors.As(err, &usageErr)
}
