// Package rego provides deterministic lifecycle management for external
// resource handles: guarded acquisition, operations that are only valid
// while the resource is held, and exactly-once, idempotent release.
package rego

import "context"

// Resource is the common surface of a managed handle.
// A Resource is acquired by its constructor and must be released exactly
// once; Release is safe to call any number of times.
type Resource interface {
	// Kind identifies the resource family for registry accounting.
	Kind() string

	// ID returns the unique identifier assigned at construction.
	ID() string

	// State reports the current lifecycle state.
	State() State

	// Release gives the underlying resource back. Subsequent calls are no-ops.
	Release() error

	// Describe returns a point-in-time snapshot of the handle. It has no
	// side effects and is valid in every lifecycle state.
	Describe() Info
}

// Session is an established channel to an external service.
type Session interface {
	// Exec runs a single statement on the session.
	Exec(ctx context.Context, query string) error

	// Close tears the session down.
	Close() error
}

// Dialer establishes Sessions to an external service.
// Production code may plug in a real client; tests substitute a fake.
type Dialer interface {
	Dial(ctx context.Context, host string, port int, user string) (Session, error)
}

// Mode defines how a file-backed resource is opened.
type Mode string

// Available file modes
const (
	// ModeRead opens an existing file for whole-content reads
	ModeRead Mode = "r"
	// ModeWrite creates or truncates the file for line-oriented writes
	ModeWrite Mode = "w"
	// ModeAppend creates the file if needed and appends line-oriented writes
	ModeAppend Mode = "a"
)

// Writable reports whether the mode permits mutating the underlying file.
func (m Mode) Writable() bool {
	return m == ModeWrite || m == ModeAppend
}

// Readable reports whether the mode permits reading the underlying file.
func (m Mode) Readable() bool {
	return m == ModeRead
}

func (m Mode) valid() bool {
	return m == ModeRead || m == ModeWrite || m == ModeAppend
}

// State describes where a handle is in its lifecycle.
// Transitions are Uninitialized -> Open (constructor, terminal on failure)
// and Open -> Closed (exactly once, via Release).
type State string

// Lifecycle states
const (
	// StateUninitialized means acquisition never succeeded; the handle is inert
	StateUninitialized State = "uninitialized"
	// StateOpen means the underlying resource is held and operations are valid
	StateOpen State = "open"
	// StateClosed means the resource has been released; terminal
	StateClosed State = "closed"
)

// Resource kinds tracked by the Registry.
const (
	KindFile = "file"
	KindConn = "connection"
)
