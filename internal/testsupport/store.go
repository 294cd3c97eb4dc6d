package testsupport

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"agenttodo/internal/queue"
)

// MustOpenStore opens a queue.Store for tests.
func MustOpenStore(t testing.TB, path string, opts ...queue.Option) *queue.Store {
	t.Helper()

	store, err := queue.Open(path, opts...)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	return store
}

// WriteQueueFile seeds a queue file with tasks exactly as given, bypassing
// the store so tests can set arbitrary statuses and timestamps.
func WriteQueueFile(t testing.TB, path string, tasks []queue.Task) {
	t.Helper()

	if tasks == nil {
		tasks = []queue.Task{}
	}
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		t.Fatalf("marshal tasks: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write queue file: %v", err)
	}
}

// AddTask enqueues a task through the store or fails the test.
func AddTask(t testing.TB, store *queue.Store, repo, base, prompt string) queue.Task {
	t.Helper()

	task, err := store.Add(context.Background(), repo, base, prompt)
	if err != nil {
		t.Fatalf("store.Add: %v", err)
	}
	return task
}

// MustGet fetches a task that is expected to exist.
func MustGet(t testing.TB, store *queue.Store, id string) queue.Task {
	t.Helper()

	task, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("store.Get: %v", err)
	}
	if task == nil {
		t.Fatalf("task %s not found", id)
	}
	return *task
}
