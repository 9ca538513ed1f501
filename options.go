package rego

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Option configures a Registry at construction time. Resources inherit the
// registry's logger and clock, so configuring the registry configures every
// handle it owns.
type Option func(*Registry)

// WithLogger sets the logger used for lifecycle and operation events.
// The default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// WithClock sets the clock used for timestamps, connected durations and
// simulated delays. Tests pass clock.NewMock() for determinism.
func WithClock(clk clock.Clock) Option {
	return func(r *Registry) {
		if clk != nil {
			r.clk = clk
		}
	}
}

// WithObserver registers a callback invoked for every lifecycle event.
// The callback runs synchronously on the goroutine producing the event and
// must not block.
func WithObserver(fn func(Event)) Option {
	return func(r *Registry) {
		r.observer = fn
	}
}
