// Package sink persists rendered plan documents.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/howell-aikit/ideaflow/internal/config"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// DocumentSink stores named documents and removes everything it stored
type DocumentSink interface {
	Write(name, content string) error
	DeleteAll() error
}

// Lister is implemented by sinks that can enumerate persisted documents
type Lister interface {
	List() ([]string, error)
}

const tmpSuffix = ".tmp"

// FileSink writes documents under a root directory. Each write goes to a
// temporary file that is renamed into place, so readers never see a
// partially written document.
type FileSink struct {
	fs      afero.Fs
	root    string
	managed []string
	written map[string]struct{}
	lock    *Lock
	logger  *zap.Logger
	mu      sync.Mutex
}

// Option configures a FileSink
type Option func(*FileSink)

// WithFileLock serializes writers from separate processes with an flock
// file in the root directory. Only meaningful on an OS filesystem.
func WithFileLock(timeout time.Duration) Option {
	return func(s *FileSink) {
		s.lock = NewLock(s.root, timeout)
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *FileSink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewFileSink creates a sink rooted at root. Managed names are removed by
// DeleteAll even when this sink instance never wrote them.
func NewFileSink(fsys afero.Fs, root string, managed []string, opts ...Option) *FileSink {
	s := &FileSink{
		fs:      fsys,
		root:    root,
		managed: managed,
		written: make(map[string]struct{}),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FromConfig creates an OS-backed sink for the configured output layout
func FromConfig(cfg config.OutputConfig, logger *zap.Logger) *FileSink {
	managed := []string{cfg.PlanFile, cfg.StepsDir}
	if cfg.PlanExport != "" {
		managed = append(managed, cfg.PlanExport)
	}
	return NewFileSink(afero.NewOsFs(), cfg.Dir, managed,
		WithFileLock(cfg.LockTimeoutDuration()),
		WithLogger(logger))
}

// Root returns the directory documents are written under
func (s *FileSink) Root() string {
	return s.root
}

// Path returns the full path of a document name
func (s *FileSink) Path(name string) string {
	return filepath.Join(s.root, name)
}

// Write stores content under name, replacing any previous version
func (s *FileSink) Write(name, content string) error {
	if !config.IsDocumentName(name) {
		return fmt.Errorf("invalid document name %q", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()

	path := s.Path(name)
	if err := s.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", name, err)
	}

	tmp := path + tmpSuffix
	if err := afero.WriteFile(s.fs, tmp, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to move %s into place: %w", name, err)
	}

	s.written[name] = struct{}{}
	s.logger.Debug("wrote document", zap.String("path", path), zap.Int("bytes", len(content)))
	return nil
}

// DeleteAll removes every managed path and every document written
func (s *FileSink) DeleteAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()

	var errs []error
	for _, name := range s.targets() {
		if err := s.fs.RemoveAll(s.Path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", name, err))
		}
	}
	s.written = make(map[string]struct{})

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	s.logger.Info("removed plan documents", zap.String("root", s.root))
	return nil
}

// List returns the relative names of persisted documents, sorted
func (s *FileSink) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	for _, name := range s.targets() {
		root := s.Path(name)
		err := afero.Walk(s.fs, root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if info.IsDir() || filepath.Ext(path) == tmpSuffix {
				return nil
			}
			rel, err := filepath.Rel(s.root, path)
			if err != nil {
				return err
			}
			seen[rel] = struct{}{}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", name, err)
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// targets returns managed and written names (must hold s.mu)
func (s *FileSink) targets() []string {
	set := make(map[string]struct{}, len(s.managed)+len(s.written))
	for _, name := range s.managed {
		if !config.IsDocumentName(name) {
			if name != "" {
				s.logger.Warn("ignoring managed path outside the output directory", zap.String("name", name))
			}
			continue
		}
		set[name] = struct{}{}
	}
	for name := range s.written {
		set[name] = struct{}{}
	}

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *FileSink) acquire() (func(), error) {
	if s.lock == nil {
		return func() {}, nil
	}
	ctx := context.Background()
	if err := s.lock.Acquire(ctx); err != nil {
		return nil, err
	}
	return func() {
		if err := s.lock.Release(); err != nil {
			s.logger.Warn("failed to release output lock", zap.Error(err))
		}
	}, nil
}
