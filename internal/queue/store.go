package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"agenttodo/internal/fileutil"
	"agenttodo/internal/logging"
)

// Store manages queue persistence backed by a JSON file.
type Store struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger routes store warnings (such as a corrupt queue file) to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logging.NewComponentLogger(logger, "queue")
	}
}

// WithClock overrides the clock used for CreatedAt and IDs.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open prepares the queue file at path, creating it (and its directory) as an
// empty collection when missing.
func Open(path string, opts ...Option) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("queue file path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure queue directory: %w", err)
	}

	store := &Store{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}

	err := store.withLock(context.Background(), true, func() error {
		if _, err := os.Stat(path); err == nil {
			return nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stat queue file: %w", err)
		}
		return store.save(nil)
	})
	if err != nil {
		return nil, err
	}
	return store, nil
}

// Path returns the queue file location.
func (s *Store) Path() string {
	return s.path
}

// Add appends a new queued task and returns it.
func (s *Store) Add(ctx context.Context, repoPath, baseBranch, prompt string) (Task, error) {
	var task Task
	err := s.mutate(ctx, func(tasks []Task) ([]Task, bool) {
		now := s.now().UTC().Truncate(time.Millisecond)
		task = Task{
			ID:         s.uniqueID(tasks, now),
			RepoPath:   repoPath,
			BaseBranch: baseBranch,
			Prompt:     prompt,
			CreatedAt:  FormatTimestamp(now),
			Status:     StatusQueued,
		}
		return append(tasks, task), true
	})
	if err != nil {
		return Task{}, fmt.Errorf("add task: %w", err)
	}
	return task, nil
}

// OldestQueued returns the first queued task in stored order, or nil when
// nothing is waiting. It does not change the task's status.
func (s *Store) OldestQueued(ctx context.Context) (*Task, error) {
	tasks, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		if tasks[i].Status == StatusQueued {
			task := tasks[i]
			return &task, nil
		}
	}
	return nil, nil
}

// UpdateStatus sets the status of the task with id. Unknown ids are ignored.
// Transitions are not validated; callers own the lifecycle policy.
func (s *Store) UpdateStatus(ctx context.Context, id string, status Status) error {
	err := s.mutate(ctx, func(tasks []Task) ([]Task, bool) {
		for i := range tasks {
			if tasks[i].ID == id {
				tasks[i].Status = status
				return tasks, true
			}
		}
		return tasks, false
	})
	if err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	return nil
}

// List returns every task in stored order.
func (s *Store) List(ctx context.Context) ([]Task, error) {
	var tasks []Task
	err := s.withLock(ctx, false, func() error {
		tasks = s.load()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// Get returns the task with id, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Task, error) {
	tasks, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		if tasks[i].ID == id {
			task := tasks[i]
			return &task, nil
		}
	}
	return nil, nil
}

// Remove deletes the task with id regardless of its status. It reports
// whether a task was removed; removing an unknown id is not an error.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	removed := false
	err := s.mutate(ctx, func(tasks []Task) ([]Task, bool) {
		filtered := tasks[:0]
		for _, task := range tasks {
			if task.ID == id {
				removed = true
				continue
			}
			filtered = append(filtered, task)
		}
		return filtered, removed
	})
	if err != nil {
		return false, fmt.Errorf("remove task %s: %w", id, err)
	}
	return removed, nil
}

// mutate runs a load/modify/save cycle under the exclusive lock. fn reports
// whether it changed the collection; unchanged collections are not rewritten.
func (s *Store) mutate(ctx context.Context, fn func([]Task) ([]Task, bool)) error {
	return s.withLock(ctx, true, func() error {
		tasks, changed := fn(s.load())
		if !changed {
			return nil
		}
		return s.save(tasks)
	})
}

// load reads the full collection. Any read or decode failure yields an empty
// collection: the queue stays usable, and the damaged file is copied aside
// and reported as a warning.
func (s *Store) load() []Task {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.warnUnreadable(err)
		}
		return []Task{}
	}
	var tasks []Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		s.warnUnreadable(err)
		return []Task{}
	}
	if tasks == nil {
		tasks = []Task{}
	}
	return tasks
}

func (s *Store) warnUnreadable(cause error) {
	backup := s.path + ".corrupt"
	attrs := []logging.Attr{
		logging.String("queue_file", s.path),
		logging.Error(cause),
		logging.String(logging.FieldImpact, "queue treated as empty; the next write replaces the file"),
	}
	if err := fileutil.CopyFile(s.path, backup); err != nil {
		attrs = append(attrs, logging.String("backup_error", err.Error()))
	} else {
		attrs = append(attrs, logging.String("backup", backup))
		attrs = append(attrs, logging.String(logging.FieldErrorHint, "inspect "+backup+" to recover lost tasks"))
	}
	logging.WarnWithContext(s.logger, "queue file unreadable", "queue_load_failed", attrs...)
}

func (s *Store) save(tasks []Task) error {
	if tasks == nil {
		tasks = []Task{}
	}
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write queue file: %w", err)
	}
	return nil
}

func (s *Store) uniqueID(tasks []Task, now time.Time) string {
	for {
		id := NewID(now)
		taken := false
		for _, task := range tasks {
			if task.ID == id {
				taken = true
				break
			}
		}
		if !taken {
			return id
		}
	}
}
