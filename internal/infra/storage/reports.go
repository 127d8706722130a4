package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

const maxNameAttempts = 1000

// ReportStore writes result assets under a local directory. File names are
// "<unix-ms>-<suffix>"; the numeric prefix never decreases across calls on
// one store.
type ReportStore struct {
	dir string
	now func() time.Time

	mu   sync.Mutex
	last int64
}

// NewReportStore returns a store rooted at dir. The directory is created on
// the first Save.
func NewReportStore(dir string) *ReportStore {
	return &ReportStore{dir: dir, now: time.Now}
}

// Dir returns the base directory.
func (s *ReportStore) Dir() string { return s.dir }

// nextStamp returns a timestamp not below any previously handed out.
func (s *ReportStore) nextStamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now().UnixMilli()
	if ts < s.last {
		ts = s.last
	}
	s.last = ts
	return ts
}

func (s *ReportStore) bump(ts int64) {
	s.mu.Lock()
	if ts > s.last {
		s.last = ts
	}
	s.mu.Unlock()
}

// Save copies r into a new file named "<unix-ms>-<suffix>" and returns its
// path once the file is fully written and closed. An existing name is never
// overwritten; the timestamp is advanced instead.
func (s *ReportStore) Save(r io.Reader, suffix string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	ts := s.nextStamp()
	var (
		f    *os.File
		path string
		err  error
	)
	for i := 0; i < maxNameAttempts; i++ {
		path = filepath.Join(s.dir, strconv.FormatInt(ts, 10)+"-"+suffix)
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("failed to create report file: %w", err)
		}
		ts++
		s.bump(ts)
	}
	if f == nil {
		return "", fmt.Errorf("failed to find a free report name in %s", s.dir)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close report: %w", err)
	}
	return path, nil
}

// WriteFile writes r to a fixed path, replacing any previous content.
func WriteFile(path string, r io.Reader) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
