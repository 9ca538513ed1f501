package rego

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// Registry tracks how many managed resources of each kind are currently
// live. It is owned by the caller and passed to resource constructors; the
// count is incremented on successful acquisition and decremented exactly
// once when a live resource is released. Counts are diagnostics for the
// owner, not a correctness dependency of any single handle.
type Registry struct {
	mu       sync.RWMutex
	live     map[string]int
	seqs     map[string]uint64
	created  map[string]uint64
	released map[string]uint64

	log      *zap.Logger
	clk      clock.Clock
	observer func(Event)
}

// NewRegistry creates an empty registry. All counts start at zero.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		live:     make(map[string]int),
		seqs:     make(map[string]uint64),
		created:  make(map[string]uint64),
		released: make(map[string]uint64),
		log:      zap.NewNop(),
		clk:      clock.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Live returns the number of currently live resources of the given kind.
func (r *Registry) Live(kind string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live[kind]
}

// Totals returns how many resources of the kind have been created and
// released over the registry's lifetime.
func (r *Registry) Totals(kind string) (created, released uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.created[kind], r.released[kind]
}

// Snapshot returns a copy of the live counts for every kind seen so far.
func (r *Registry) Snapshot() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int, len(r.live))
	for kind, n := range r.live {
		out[kind] = n
	}
	return out
}

// Reset clears all registry state.
// This function is intended for testing purposes only; counts are never
// reset during a normal run.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.live = make(map[string]int)
	r.seqs = make(map[string]uint64)
	r.created = make(map[string]uint64)
	r.released = make(map[string]uint64)
}

// add records a successful acquisition and returns the per-kind sequence
// number assigned to the new handle.
func (r *Registry) add(kind, id, target string) uint64 {
	r.mu.Lock()
	r.live[kind]++
	r.created[kind]++
	r.seqs[kind]++
	seq := r.seqs[kind]
	liveNow := r.live[kind]
	r.mu.Unlock()

	r.log.Info("resource acquired",
		zap.String("kind", kind),
		zap.String("id", id),
		zap.String("target", target),
		zap.Uint64("seq", seq),
		zap.Int("live", liveNow))
	r.emit(Event{Type: EventAcquired, Kind: kind, ID: id, Target: target, Live: liveNow})
	return seq
}

// remove records the first release of a live handle. Idempotence is the
// handle's responsibility; remove is called at most once per handle.
func (r *Registry) remove(kind, id, target string) {
	r.mu.Lock()
	if r.live[kind] > 0 {
		r.live[kind]--
	}
	r.released[kind]++
	liveNow := r.live[kind]
	r.mu.Unlock()

	r.log.Info("resource released",
		zap.String("kind", kind),
		zap.String("id", id),
		zap.String("target", target),
		zap.Int("live", liveNow))
	r.emit(Event{Type: EventReleased, Kind: kind, ID: id, Target: target, Live: liveNow})
}

func (r *Registry) emit(ev Event) {
	if r.observer == nil {
		return
	}
	ev.Timestamp = r.clk.Now()
	r.observer(ev)
}

func (r *Registry) logger() *zap.Logger {
	return r.log
}

func (r *Registry) clock() clock.Clock {
	return r.clk
}

// EventType classifies a lifecycle event.
type EventType string

// Lifecycle event types
const (
	EventAcquired  EventType = "acquired"
	EventOperation EventType = "operation"
	EventReleased  EventType = "released"
)

// Event is a structured lifecycle notification delivered to the registry's
// observer. Live carries the kind's live count after the event.
type Event struct {
	Type      EventType `json:"type"`
	Kind      string    `json:"kind"`
	ID        string    `json:"id"`
	Target    string    `json:"target"`
	Timestamp time.Time `json:"timestamp"`
	Live      int       `json:"live"`
	Detail    string    `json:"detail,omitempty"`
}
