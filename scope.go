package rego

import (
	"context"
	"errors"
	"sync"
)

// WithFile acquires a file handle, runs fn, and guarantees release on every
// exit path. A release failure is returned only when fn itself succeeded.
func WithFile(reg *Registry, path string, mode Mode, fn func(*FileResource) error) (err error) {
	f, aerr := OpenFile(reg, path, mode)
	if aerr != nil {
		return aerr
	}
	defer func() {
		if rerr := f.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn(f)
}

// WithConn acquires a connection handle, runs fn, and guarantees release on
// every exit path.
func WithConn(ctx context.Context, reg *Registry, host string, port int, user string, fn func(*ConnResource) error, opts ...ConnOption) (err error) {
	c, aerr := Connect(ctx, reg, host, port, user, opts...)
	if aerr != nil {
		return aerr
	}
	defer func() {
		if rerr := c.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn(c)
}

// Group owns a set of live resources and releases them together, newest
// first. It is the scoped-acquisition primitive for owners whose resources
// outlive a single function call.
type Group struct {
	mu        sync.Mutex
	resources []Resource
}

// NewGroup creates an empty group.
func NewGroup() *Group {
	return &Group{}
}

// Add places a resource under the group's ownership.
func (g *Group) Add(r Resource) {
	if r == nil {
		return
	}
	g.mu.Lock()
	g.resources = append(g.resources, r)
	g.mu.Unlock()
}

// Len returns the number of resources the group owns.
func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.resources)
}

// ReleaseAll releases every owned resource in reverse acquisition order and
// joins any release failures. Individual releases are idempotent, so
// calling ReleaseAll more than once is safe and subsequent calls return nil.
func (g *Group) ReleaseAll() error {
	g.mu.Lock()
	resources := g.resources
	g.resources = nil
	g.mu.Unlock()

	var errs []error
	for i := len(resources) - 1; i >= 0; i-- {
		if err := resources[i].Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Track is a pass-through helper for placing a freshly acquired resource
// under a group's ownership:
//
//	f, err := rego.Track(group, rego.OpenFile(reg, path, rego.ModeWrite))
//
// Inert handles from failed acquisitions are tracked too; releasing them is
// a no-op, so the group stays the single release point either way.
func Track[R Resource](g *Group, r R, err error) (R, error) {
	g.Add(r)
	return r, err
}
