package resources_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	rego "github.com/centraunit/goallin_resources"
	"github.com/centraunit/goallin_resources/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type ConcurrentTestSuite struct {
	suite.Suite
	reg *rego.Registry
	dir string
}

func (s *ConcurrentTestSuite) SetupTest() {
	s.reg = rego.NewRegistry()
	s.dir = s.T().TempDir()
}

func (s *ConcurrentTestSuite) TestConcurrentFileLifecycles() {
	const workers = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			path := filepath.Join(s.dir, fmt.Sprintf("worker_%d.txt", id))
			err := rego.WithFile(s.reg, path, rego.ModeWrite, func(f *rego.FileResource) error {
				return f.WriteLine(fmt.Sprintf("worker %d", id))
			})
			if err != nil {
				errs <- err
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}

	s.Equal(0, s.reg.Live(rego.KindFile))
	created, released := s.reg.Totals(rego.KindFile)
	s.Equal(uint64(workers), created)
	s.Equal(uint64(workers), released)
}

func (s *ConcurrentTestSuite) TestConcurrentConnLifecycles() {
	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	ctx := context.Background()

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			dialer := &mock.MockDialer{}
			err := rego.WithConn(ctx, s.reg, "db.internal", 5432, "svc", func(c *rego.ConnResource) error {
				return c.Execute(ctx, fmt.Sprintf("SELECT %d", id))
			}, rego.WithDialer(dialer))
			if err != nil {
				errs <- err
			}
		}(i)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}

	s.Equal(0, s.reg.Live(rego.KindConn))
}

func (s *ConcurrentTestSuite) TestConcurrentReleaseOfSharedHandle() {
	f, err := rego.OpenFile(s.reg, filepath.Join(s.dir, "shared.txt"), rego.ModeWrite)
	s.Require().NoError(err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.NoError(f.Release())
		}()
	}
	wg.Wait()

	s.Equal(0, s.reg.Live(rego.KindFile))
	_, released := s.reg.Totals(rego.KindFile)
	s.Equal(uint64(1), released)
}

func TestConcurrentSuite(t *testing.T) {
	suite.Run(t, new(ConcurrentTestSuite))
}
