package resources_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	rego "github.com/centraunit/goallin_resources"
	"github.com/stretchr/testify/suite"
)

type FileTestSuite struct {
	suite.Suite
	reg *rego.Registry
	dir string
}

func (s *FileTestSuite) SetupTest() {
	s.reg = rego.NewRegistry()
	s.dir = s.T().TempDir()
}

func (s *FileTestSuite) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *FileTestSuite) TestWriteReleaseReadBack() {
	path := s.path("data.txt")

	f, err := rego.OpenFile(s.reg, path, rego.ModeWrite)
	s.NoError(err)
	s.Equal(rego.StateOpen, f.State())

	s.NoError(f.WriteLine("A"))
	s.NoError(f.WriteLine("B"))
	s.NoError(f.Release())

	r, err := rego.OpenFile(s.reg, path, rego.ModeRead)
	s.NoError(err)
	contents, err := r.ReadAll()
	s.NoError(err)
	s.NoError(r.Release())

	lines := strings.Split(strings.TrimRight(contents, "\n"), "\n")
	s.Len(lines, 4)
	s.True(strings.HasPrefix(lines[0], "=== opened "), "first line should be the header marker, got %q", lines[0])
	s.True(strings.HasSuffix(lines[1], "- A"), "got %q", lines[1])
	s.True(strings.HasSuffix(lines[2], "- B"), "got %q", lines[2])
	s.True(strings.HasPrefix(lines[3], "=== closed "), "last line should be the closing marker, got %q", lines[3])
}

func (s *FileTestSuite) TestWriteOnReadModeIsNoOp() {
	path := s.path("readonly.txt")
	s.NoError(os.WriteFile(path, []byte("original\n"), 0644))

	f, err := rego.OpenFile(s.reg, path, rego.ModeRead)
	s.NoError(err)
	defer f.Release()

	err = f.WriteLine("should not land")
	var invalid *rego.InvalidOperationError
	s.ErrorAs(err, &invalid)
	s.Equal("write_line", invalid.Op)

	contents, err := f.ReadAll()
	s.NoError(err)
	s.Equal("original\n", contents)
}

func (s *FileTestSuite) TestDoubleReleaseWritesOneClosingMarker() {
	path := s.path("once.txt")

	f, err := rego.OpenFile(s.reg, path, rego.ModeWrite)
	s.NoError(err)
	s.NoError(f.WriteLine("payload"))

	s.NoError(f.Release())
	s.NoError(f.Release())
	s.Equal(rego.StateClosed, f.State())

	data, err := os.ReadFile(path)
	s.NoError(err)
	s.Equal(1, strings.Count(string(data), "=== closed "))
	s.Equal(0, s.reg.Live(rego.KindFile))
}

func (s *FileTestSuite) TestAcquisitionFailureLeavesInertHandle() {
	path := filepath.Join(s.dir, "missing", "nested", "file.txt")

	f, err := rego.OpenFile(s.reg, path, rego.ModeRead)
	var aerr *rego.AcquisitionError
	s.ErrorAs(err, &aerr)
	s.Equal(rego.KindFile, aerr.Kind)

	s.NotNil(f)
	s.Equal(rego.StateUninitialized, f.State())
	s.Equal(0, s.reg.Live(rego.KindFile))

	var invalid *rego.InvalidOperationError
	s.ErrorAs(f.WriteLine("nope"), &invalid)
	_, rerr := f.ReadAll()
	s.ErrorAs(rerr, &invalid)
	s.NoError(f.Release())
	s.Equal(0, s.reg.Live(rego.KindFile))
}

func (s *FileTestSuite) TestInvalidModeRejected() {
	f, err := rego.OpenFile(s.reg, s.path("x.txt"), rego.Mode("x"))
	var aerr *rego.AcquisitionError
	s.ErrorAs(err, &aerr)
	s.Equal(rego.StateUninitialized, f.State())
	s.NoFileExists(s.path("x.txt"))
}

func (s *FileTestSuite) TestOperationsAfterReleaseNeverMutate() {
	path := s.path("sealed.txt")

	f, err := rego.OpenFile(s.reg, path, rego.ModeWrite)
	s.NoError(err)
	s.NoError(f.WriteLine("kept"))
	s.NoError(f.Release())

	before, err := os.ReadFile(path)
	s.NoError(err)

	var invalid *rego.InvalidOperationError
	s.ErrorAs(f.WriteLine("dropped"), &invalid)
	_, rerr := f.ReadAll()
	s.ErrorAs(rerr, &invalid)

	after, err := os.ReadFile(path)
	s.NoError(err)
	s.Equal(before, after)
}

func (s *FileTestSuite) TestReadOnWriteModeRejected() {
	f, err := rego.OpenFile(s.reg, s.path("w.txt"), rego.ModeWrite)
	s.NoError(err)
	defer f.Release()

	_, rerr := f.ReadAll()
	var invalid *rego.InvalidOperationError
	s.ErrorAs(rerr, &invalid)
	s.Equal("read_all", invalid.Op)
}

func (s *FileTestSuite) TestDescribeSnapshot() {
	mockClock := clock.NewMock()
	created := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	mockClock.Set(created)
	reg := rego.NewRegistry(rego.WithClock(mockClock))

	path := s.path("described.txt")
	f, err := rego.OpenFile(reg, path, rego.ModeWrite)
	s.NoError(err)
	s.NoError(f.WriteLine("one"))
	s.NoError(f.WriteLine("two"))

	info := f.Describe()
	s.Equal(rego.KindFile, info.Kind)
	s.Equal(f.ID(), info.ID)
	s.Equal(uint64(1), info.Seq)
	s.Equal(path, info.Target)
	s.Equal(rego.ModeWrite, info.Mode)
	s.Equal(rego.StateOpen, info.State)
	s.True(info.CreatedAt.Equal(created))
	// header marker plus two lines
	s.Equal(3, info.Operations)

	s.NoError(f.Release())
	s.Equal(rego.StateClosed, f.Describe().State)
}

func (s *FileTestSuite) TestAppendModePreservesContents() {
	path := s.path("log.txt")

	s.NoError(rego.WithFile(s.reg, path, rego.ModeWrite, func(f *rego.FileResource) error {
		return f.WriteLine("first run")
	}))
	s.NoError(rego.WithFile(s.reg, path, rego.ModeAppend, func(f *rego.FileResource) error {
		return f.WriteLine("second run")
	}))

	data, err := os.ReadFile(path)
	s.NoError(err)
	contents := string(data)
	s.Contains(contents, "first run")
	s.Contains(contents, "second run")
	s.Equal(2, strings.Count(contents, "=== opened "))
	s.Equal(2, strings.Count(contents, "=== closed "))
	s.Less(strings.Index(contents, "first run"), strings.Index(contents, "second run"))
}

func TestFileSuite(t *testing.T) {
	suite.Run(t, new(FileTestSuite))
}
