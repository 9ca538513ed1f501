package rego

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConnResource is a managed handle over a session to an external service.
// The session is established by an injectable Dialer; the default dialer is
// simulated and performs no real I/O.
type ConnResource struct {
	mu      sync.Mutex
	state   State
	session Session
	ops     int

	id          string
	seq         uint64
	host        string
	port        int
	user        string
	connectedAt time.Time

	reg *Registry
	log *zap.Logger
	clk clock.Clock
}

// ConnOption configures a single connection acquisition.
type ConnOption func(*connConfig)

type connConfig struct {
	dialer Dialer
}

// WithDialer substitutes the collaborator that establishes the session.
func WithDialer(d Dialer) ConnOption {
	return func(c *connConfig) {
		if d != nil {
			c.dialer = d
		}
	}
}

// Connect acquires a connection handle owned by reg.
//
// Like OpenFile, the handle is never nil: a failed acquisition returns an
// inert handle on which every operation is a reported no-op.
func Connect(ctx context.Context, reg *Registry, host string, port int, user string, opts ...ConnOption) (*ConnResource, error) {
	c := &ConnResource{
		state: StateUninitialized,
		id:    uuid.NewString(),
		host:  host,
		port:  port,
		user:  user,
		log:   zap.NewNop(),
		clk:   clock.New(),
	}
	if reg == nil {
		return c, &NilRegistryError{Kind: KindConn}
	}
	c.reg = reg
	c.log = reg.logger()
	c.clk = reg.clock()

	cfg := &connConfig{dialer: NewSimulatedDialer(c.clk, 0, 0)}
	for _, opt := range opts {
		opt(cfg)
	}

	session, err := cfg.dialer.Dial(ctx, host, port, user)
	if err != nil {
		aerr := &AcquisitionError{Kind: KindConn, Target: c.target(), Err: err}
		c.log.Warn("connection failed",
			zap.String("target", c.target()),
			zap.String("user", user),
			zap.Error(err))
		return c, aerr
	}

	c.session = session
	c.connectedAt = c.clk.Now()
	c.state = StateOpen
	c.seq = reg.add(KindConn, c.id, c.target())
	return c, nil
}

// Execute runs a query on the session and increments the operation counter.
// Returns InvalidOperationError without touching the session if the handle
// is not connected.
func (c *ConnResource) Execute(ctx context.Context, query string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen {
		err := &InvalidOperationError{Kind: KindConn, Op: "execute", Reason: "resource is " + string(c.state)}
		c.log.Warn("query rejected", zap.String("target", c.target()), zap.Error(err))
		return err
	}

	if err := c.session.Exec(ctx, query); err != nil {
		return fmt.Errorf("execute on %s: %w", c.target(), err)
	}
	c.ops++

	c.log.Debug("query executed",
		zap.String("target", c.target()),
		zap.Int("ops", c.ops))
	c.reg.emit(Event{Type: EventOperation, Kind: KindConn, ID: c.id, Target: c.target(), Live: c.reg.Live(KindConn), Detail: "execute"})
	return nil
}

// Release closes the session exactly once, reporting the total operations
// executed and the connected duration. A session close failure surfaces as
// a ReleaseError but the handle still transitions to Closed. Releasing a
// handle that is not connected does nothing observable.
func (c *ConnResource) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen {
		return nil
	}

	closeErr := c.session.Close()
	c.session = nil
	c.state = StateClosed
	c.reg.remove(KindConn, c.id, c.target())
	c.log.Info("connection closed",
		zap.String("target", c.target()),
		zap.String("user", c.user),
		zap.Int("ops", c.ops),
		zap.Duration("connected", c.clk.Since(c.connectedAt)))

	if closeErr != nil {
		return &ReleaseError{Kind: KindConn, Target: c.target(), Err: closeErr}
	}
	return nil
}

// Kind implements Resource.
func (c *ConnResource) Kind() string { return KindConn }

// ID implements Resource.
func (c *ConnResource) ID() string { return c.id }

// State implements Resource.
func (c *ConnResource) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Operations returns how many queries have been executed on the handle.
func (c *ConnResource) Operations() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ops
}

// Describe implements Resource.
func (c *ConnResource) Describe() Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Info{
		Kind:       KindConn,
		ID:         c.id,
		Seq:        c.seq,
		Target:     c.target(),
		User:       c.user,
		State:      c.state,
		CreatedAt:  c.connectedAt,
		Operations: c.ops,
	}
}

func (c *ConnResource) target() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

// simulatedDialer stands in for a real client. Delays are illustrative;
// zero delays skip waiting entirely, which keeps mock-clock tests from
// blocking on timers nobody advances.
type simulatedDialer struct {
	clk       clock.Clock
	dialDelay time.Duration
	execDelay time.Duration
}

// NewSimulatedDialer returns a Dialer that establishes sessions without any
// real I/O, waiting the given delays on dial and on each exec.
func NewSimulatedDialer(clk clock.Clock, dialDelay, execDelay time.Duration) Dialer {
	if clk == nil {
		clk = clock.New()
	}
	return &simulatedDialer{clk: clk, dialDelay: dialDelay, execDelay: execDelay}
}

func (d *simulatedDialer) Dial(ctx context.Context, host string, port int, user string) (Session, error) {
	if err := d.wait(ctx, d.dialDelay); err != nil {
		return nil, err
	}
	return &simulatedSession{clk: d.clk, execDelay: d.execDelay}, nil
}

func (d *simulatedDialer) wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-d.clk.After(delay):
		return nil
	}
}

type simulatedSession struct {
	clk       clock.Clock
	execDelay time.Duration
}

func (s *simulatedSession) Exec(ctx context.Context, query string) error {
	if s.execDelay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.clk.After(s.execDelay):
		return nil
	}
}

func (s *simulatedSession) Close() error {
	return nil
}
