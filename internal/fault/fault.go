// Package fault defines the error taxonomy shared by every lifecycle
// component, plus the PartialFailure result describing how far a multi-step
// mutation got before it was aborted.
//
// Validation errors (ErrInvalidAddressBlock, ErrMissingParameter,
// ErrInvalidName, ErrPolicyParse) are always raised before any kernel
// mutation. ErrNotFound is raised by best-effort deletion targets and is
// swallowed on delete paths. There is no retry anywhere: the first kernel
// failure aborts the operation and triggers its rollback path.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidAddressBlock indicates a CIDR that does not parse or is too
	// small to hold a gateway and a host address inside the block.
	ErrInvalidAddressBlock = errors.New("invalid address block")

	// ErrMissingParameter indicates a required parameter was not supplied,
	// e.g. a public subnet without an internet interface.
	ErrMissingParameter = errors.New("missing parameter")

	// ErrInvalidName indicates a derived kernel object name is unusable,
	// e.g. an interface name exceeding IFNAMSIZ.
	ErrInvalidName = errors.New("invalid name")

	// ErrInvalidArgument indicates a structurally bad request, e.g. peering
	// a VPC with itself.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrKernelCommand indicates a kernel mutation (netlink, netns or
	// nftables operation) failed.
	ErrKernelCommand = errors.New("kernel command failed")

	// ErrNotFound indicates the target of a query or best-effort deletion
	// does not exist. Delete paths swallow it to stay idempotent.
	ErrNotFound = errors.New("not found")

	// ErrPolicyParse indicates a malformed security policy document.
	ErrPolicyParse = errors.New("invalid policy")
)

// Step records the outcome of one sub-step of a multi-step operation.
type Step struct {
	Name string
	Err  error
}

// OK reports whether the step completed.
func (s Step) OK() bool { return s.Err == nil }

// PartialFailure is returned when a multi-step mutation aborted midway. It
// carries what succeeded, what failed, and what cleanup was attempted, so
// the operator can reconcile any kernel objects the rollback left behind.
type PartialFailure struct {
	Op      string
	Steps   []Step
	Cleanup []Step
	Cause   error
}

// Error renders the step ledger in the order it executed.
func (e *PartialFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s aborted: %v", e.Op, e.Cause)

	var done []string
	for _, s := range e.Steps {
		if s.OK() {
			done = append(done, s.Name)
		}
	}
	if len(done) > 0 {
		fmt.Fprintf(&b, "; completed: %s", strings.Join(done, ", "))
	}
	for _, s := range e.Cleanup {
		if s.OK() {
			fmt.Fprintf(&b, "; cleaned up: %s", s.Name)
		} else {
			fmt.Fprintf(&b, "; cleanup of %s failed: %v", s.Name, s.Err)
		}
	}
	return b.String()
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *PartialFailure) Unwrap() error { return e.Cause }
