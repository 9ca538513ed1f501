package mock

import (
	"context"
	"fmt"
	"sync"

	rego "github.com/centraunit/goallin_resources"
)

// MockSession records every statement executed on it.
type MockSession struct {
	mu         sync.Mutex
	Queries    []string
	Closed     bool
	CloseCalls int

	ExecErr  error
	CloseErr error
}

func (s *MockSession) Exec(ctx context.Context, query string) error {
	if s.ExecErr != nil {
		return s.ExecErr
	}
	s.mu.Lock()
	s.Queries = append(s.Queries, query)
	s.mu.Unlock()
	return nil
}

func (s *MockSession) Close() error {
	s.mu.Lock()
	s.Closed = true
	s.CloseCalls++
	s.mu.Unlock()
	return s.CloseErr
}

func (s *MockSession) QueryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Queries)
}

// MockDialer hands out MockSessions and remembers what it was asked to dial.
type MockDialer struct {
	mu       sync.Mutex
	Sessions []*MockSession

	LastHost string
	LastPort int
	LastUser string

	CloseErr error
}

func (d *MockDialer) Dial(ctx context.Context, host string, port int, user string) (rego.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.LastHost = host
	d.LastPort = port
	d.LastUser = user

	session := &MockSession{CloseErr: d.CloseErr}
	d.Sessions = append(d.Sessions, session)
	return session, nil
}

// LastSession returns the most recently dialed session, or nil.
func (d *MockDialer) LastSession() *MockSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Sessions) == 0 {
		return nil
	}
	return d.Sessions[len(d.Sessions)-1]
}

// FailingDialer refuses to connect while ShouldFail is set.
type FailingDialer struct {
	MockDialer
	ShouldFail bool
}

func (d *FailingDialer) Dial(ctx context.Context, host string, port int, user string) (rego.Session, error) {
	if d.ShouldFail {
		return nil, fmt.Errorf("simulated dial failure")
	}
	return d.MockDialer.Dial(ctx, host, port, user)
}
