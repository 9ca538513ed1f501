package rego

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	lineStampLayout = "15:04:05"
)

// FileResource is a managed handle over a file opened in one of three modes.
// Writes and reads are only valid while the handle is open and the mode
// permits them; everything else is a reported no-op. Release closes the
// file exactly once, appending a closing marker when the mode is writable.
type FileResource struct {
	mu    sync.Mutex
	state State
	file  *os.File
	lines []string

	id        string
	seq       uint64
	path      string
	mode      Mode
	createdAt time.Time

	reg *Registry
	log *zap.Logger
	clk clock.Clock
}

// OpenFile acquires a file handle owned by reg.
//
// The returned handle is never nil. On acquisition failure it comes back
// alongside an AcquisitionError: the handle is inert, never counted as
// live, and every operation on it (including Release) is a safe no-op.
// Callers that ignore the error therefore degrade gracefully instead of
// crashing.
func OpenFile(reg *Registry, path string, mode Mode) (*FileResource, error) {
	f := &FileResource{
		state: StateUninitialized,
		id:    uuid.NewString(),
		path:  path,
		mode:  mode,
		log:   zap.NewNop(),
		clk:   clock.New(),
	}
	if reg == nil {
		return f, &NilRegistryError{Kind: KindFile}
	}
	f.reg = reg
	f.log = reg.logger()
	f.clk = reg.clock()

	if !mode.valid() {
		err := &AcquisitionError{Kind: KindFile, Target: path, Err: fmt.Errorf("unsupported mode %q", mode)}
		f.log.Warn("file acquisition rejected", zap.String("path", path), zap.Error(err))
		return f, err
	}

	handle, err := os.OpenFile(path, osFlags(mode), 0644)
	if err != nil {
		aerr := &AcquisitionError{Kind: KindFile, Target: path, Err: err}
		f.log.Warn("file acquisition failed", zap.String("path", path), zap.Error(err))
		return f, aerr
	}

	f.file = handle
	f.createdAt = f.clk.Now()

	if mode.Writable() {
		header := fmt.Sprintf("=== opened %s ===\n", f.createdAt.Format(timestampLayout))
		if _, err := handle.WriteString(header); err != nil {
			handle.Close()
			f.file = nil
			return f, &AcquisitionError{Kind: KindFile, Target: path, Err: err}
		}
		f.lines = append(f.lines, header)
	}

	f.state = StateOpen
	f.seq = f.reg.add(KindFile, f.id, path)
	return f, nil
}

func osFlags(mode Mode) int {
	switch mode {
	case ModeWrite:
		return os.O_CREATE | os.O_TRUNC | os.O_WRONLY
	case ModeAppend:
		return os.O_CREATE | os.O_APPEND | os.O_WRONLY
	default:
		return os.O_RDONLY
	}
}

// WriteLine appends a timestamped line to the file and mirrors it into the
// handle's in-memory log. Returns InvalidOperationError without touching
// the file if the handle is not open or the mode forbids writing.
func (f *FileResource) WriteLine(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateOpen {
		err := &InvalidOperationError{Kind: KindFile, Op: "write_line", Reason: "resource is " + string(f.state)}
		f.log.Warn("write rejected", zap.String("path", f.path), zap.Error(err))
		return err
	}
	if !f.mode.Writable() {
		err := &InvalidOperationError{Kind: KindFile, Op: "write_line", Reason: fmt.Sprintf("mode %q does not permit writing", f.mode)}
		f.log.Warn("write rejected", zap.String("path", f.path), zap.Error(err))
		return err
	}

	line := fmt.Sprintf("%s - %s\n", f.clk.Now().Format(lineStampLayout), text)
	if _, err := f.file.WriteString(line); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	f.lines = append(f.lines, line)

	f.log.Debug("line written", zap.String("path", f.path), zap.Int("lines", len(f.lines)))
	f.reg.emit(Event{Type: EventOperation, Kind: KindFile, ID: f.id, Target: f.path, Live: f.reg.Live(KindFile), Detail: "write_line"})
	return nil
}

// ReadAll returns the full file contents from the start. Returns an empty
// string and InvalidOperationError if the handle is not open for reading.
func (f *FileResource) ReadAll() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateOpen {
		return "", &InvalidOperationError{Kind: KindFile, Op: "read_all", Reason: "resource is " + string(f.state)}
	}
	if !f.mode.Readable() {
		return "", &InvalidOperationError{Kind: KindFile, Op: "read_all", Reason: fmt.Sprintf("mode %q does not permit reading", f.mode)}
	}

	if _, err := f.file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek %s: %w", f.path, err)
	}
	data, err := io.ReadAll(f.file)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.path, err)
	}

	f.reg.emit(Event{Type: EventOperation, Kind: KindFile, ID: f.id, Target: f.path, Live: f.reg.Live(KindFile), Detail: "read_all"})
	return string(data), nil
}

// Release closes the file exactly once. If the mode is writable a closing
// marker is appended first. Marker or close failures surface as a
// ReleaseError, but the handle still transitions to Closed so no state
// leaks. Releasing a handle that is not open does nothing observable.
func (f *FileResource) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateOpen {
		return nil
	}

	var errs []error
	if f.mode.Writable() {
		marker := fmt.Sprintf("=== closed %s ===\n", f.clk.Now().Format(timestampLayout))
		if _, err := f.file.WriteString(marker); err != nil {
			errs = append(errs, err)
		}
	}
	if err := f.file.Close(); err != nil {
		errs = append(errs, err)
	}

	f.file = nil
	f.state = StateClosed
	f.reg.remove(KindFile, f.id, f.path)
	f.log.Info("file handle closed",
		zap.String("path", f.path),
		zap.Uint64("seq", f.seq),
		zap.Int("lines_written", len(f.lines)))

	if len(errs) > 0 {
		return &ReleaseError{Kind: KindFile, Target: f.path, Err: errors.Join(errs...)}
	}
	return nil
}

// Kind implements Resource.
func (f *FileResource) Kind() string { return KindFile }

// ID implements Resource.
func (f *FileResource) ID() string { return f.id }

// Path returns the file path the handle was acquired for.
func (f *FileResource) Path() string { return f.path }

// Mode returns the mode the handle was acquired with.
func (f *FileResource) Mode() Mode { return f.mode }

// State implements Resource.
func (f *FileResource) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// LinesWritten returns how many lines (including the header marker) have
// been mirrored into the in-memory log.
func (f *FileResource) LinesWritten() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lines)
}

// Describe implements Resource.
func (f *FileResource) Describe() Info {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Info{
		Kind:       KindFile,
		ID:         f.id,
		Seq:        f.seq,
		Target:     f.path,
		Mode:       f.mode,
		State:      f.state,
		CreatedAt:  f.createdAt,
		Operations: len(f.lines),
	}
}
