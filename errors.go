package rego

import "fmt"

// AcquisitionError represents a failure to obtain the underlying resource.
// The handle it accompanies is inert: every operation on it is a reported
// no-op and Release does nothing observable.
type AcquisitionError struct {
	Kind   string
	Target string
	Err    error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquisition failed for %s %q: %v", e.Kind, e.Target, e.Err)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Err
}

// InvalidOperationError represents an operation attempted on a handle that
// is not open, or whose mode does not permit the operation. The operation
// is a no-op; nothing was mutated.
type InvalidOperationError struct {
	Kind   string
	Op     string
	Reason string
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("invalid operation %s on %s resource: %s", e.Op, e.Kind, e.Reason)
}

// ReleaseError represents a failure while giving the resource back.
// The handle still transitions to Closed so that state is never leaked.
type ReleaseError struct {
	Kind   string
	Target string
	Err    error
}

func (e *ReleaseError) Error() string {
	return fmt.Sprintf("release failed for %s %q: %v", e.Kind, e.Target, e.Err)
}

func (e *ReleaseError) Unwrap() error {
	return e.Err
}

// NilRegistryError represents an attempt to construct a resource without
// an owning registry.
type NilRegistryError struct {
	Kind string
}

func (e *NilRegistryError) Error() string {
	return fmt.Sprintf("nil registry provided for %s resource", e.Kind)
}
