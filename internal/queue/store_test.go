package queue_test

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"agenttodo/internal/queue"
	"agenttodo/internal/testsupport"
)

func TestAddPreservesInsertionOrder(t *testing.T) {
	store := testsupport.MustOpenStore(t, filepath.Join(t.TempDir(), "queue.json"))
	ctx := context.Background()

	var added []queue.Task
	for i := 0; i < 20; i++ {
		task, err := store.Add(ctx, "/r", "main", fmt.Sprintf("prompt %d", i))
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		added = append(added, task)
	}

	tasks, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(tasks) != len(added) {
		t.Fatalf("expected %d tasks, got %d", len(added), len(tasks))
	}
	seen := make(map[string]struct{}, len(tasks))
	for i, task := range tasks {
		if task.ID != added[i].ID {
			t.Fatalf("position %d: expected %s, got %s", i, added[i].ID, task.ID)
		}
		if task.Status != queue.StatusQueued {
			t.Fatalf("position %d: expected queued, got %s", i, task.Status)
		}
		if _, dup := seen[task.ID]; dup {
			t.Fatalf("duplicate id %s", task.ID)
		}
		seen[task.ID] = struct{}{}
	}
}

func TestAddPopulatesFields(t *testing.T) {
	fixed := time.Date(2025, 3, 4, 5, 6, 7, 891234567, time.UTC)
	store := testsupport.MustOpenStore(t, filepath.Join(t.TempDir(), "queue.json"), queue.WithClock(func() time.Time { return fixed }))

	task, err := store.Add(context.Background(), "/repos/app", "develop", "add tests")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if task.RepoPath != "/repos/app" || task.BaseBranch != "develop" || task.Prompt != "add tests" {
		t.Fatalf("unexpected task fields: %+v", task)
	}
	if task.CreatedAt != "2025-03-04T05:06:07.891Z" {
		t.Fatalf("unexpected createdAt: %v", task.CreatedAt)
	}
	wantPrefix := fmt.Sprintf("task-%d-", fixed.UnixMilli())
	if !strings.HasPrefix(task.ID, wantPrefix) || len(task.ID) != len(wantPrefix)+7 {
		t.Fatalf("unexpected id format: %q", task.ID)
	}
}

func TestOldestQueuedSkipsNonQueued(t *testing.T) {
	store := testsupport.MustOpenStore(t, filepath.Join(t.TempDir(), "queue.json"))
	ctx := context.Background()

	if task, err := store.OldestQueued(ctx); err != nil || task != nil {
		t.Fatalf("expected no task on empty queue, got %+v err=%v", task, err)
	}

	a, err := store.Add(ctx, "/r", "main", "fix bug")
	if err != nil {
		t.Fatalf("Add A failed: %v", err)
	}
	b, err := store.Add(ctx, "/r", "main", "second")
	if err != nil {
		t.Fatalf("Add B failed: %v", err)
	}

	oldest, err := store.OldestQueued(ctx)
	if err != nil {
		t.Fatalf("OldestQueued failed: %v", err)
	}
	if oldest == nil || oldest.ID != a.ID {
		t.Fatalf("expected A, got %+v", oldest)
	}

	again, err := store.OldestQueued(ctx)
	if err != nil || again == nil || again.ID != a.ID || again.Status != queue.StatusQueued {
		t.Fatalf("OldestQueued must not mutate status, got %+v err=%v", again, err)
	}

	if err := store.UpdateStatus(ctx, a.ID, queue.StatusProcessing); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	oldest, err = store.OldestQueued(ctx)
	if err != nil {
		t.Fatalf("OldestQueued failed: %v", err)
	}
	if oldest == nil || oldest.ID != b.ID {
		t.Fatalf("expected B after A is processing, got %+v", oldest)
	}

	if err := store.UpdateStatus(ctx, b.ID, queue.StatusFailed); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if oldest, err = store.OldestQueued(ctx); err != nil || oldest != nil {
		t.Fatalf("expected no queued task, got %+v err=%v", oldest, err)
	}
}

func TestOldestQueuedUsesInsertionOrderNotTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	later := "2030-01-01T00:00:00.000Z"
	earlier := "2020-01-01T00:00:00.000Z"
	testsupport.WriteQueueFile(t, path, []queue.Task{
		{ID: "first", RepoPath: "/r", BaseBranch: "main", Prompt: "p", CreatedAt: later, Status: queue.StatusQueued},
		{ID: "second", RepoPath: "/r", BaseBranch: "main", Prompt: "p", CreatedAt: earlier, Status: queue.StatusQueued},
	})
	store := testsupport.MustOpenStore(t, path)

	oldest, err := store.OldestQueued(context.Background())
	if err != nil {
		t.Fatalf("OldestQueued failed: %v", err)
	}
	if oldest == nil || oldest.ID != "first" {
		t.Fatalf("expected stored order to win, got %+v", oldest)
	}
}

func TestUpdateStatusChangesOnlyStatus(t *testing.T) {
	store := testsupport.MustOpenStore(t, filepath.Join(t.TempDir(), "queue.json"))
	ctx := context.Background()

	a, _ := store.Add(ctx, "/r", "main", "one")
	b, _ := store.Add(ctx, "/r", "main", "two")

	for _, status := range []queue.Status{queue.StatusProcessing, queue.StatusCompleted, queue.StatusQueued} {
		if err := store.UpdateStatus(ctx, a.ID, status); err != nil {
			t.Fatalf("UpdateStatus(%s) failed: %v", status, err)
		}
		got, err := store.Get(ctx, a.ID)
		if err != nil || got == nil {
			t.Fatalf("Get failed: %+v err=%v", got, err)
		}
		want := a
		want.Status = status
		if !reflect.DeepEqual(*got, want) {
			t.Fatalf("expected %+v, got %+v", want, *got)
		}
	}

	other, err := store.Get(ctx, b.ID)
	if err != nil || other == nil || !reflect.DeepEqual(*other, b) {
		t.Fatalf("other task changed: %+v err=%v", other, err)
	}
}

func TestUnknownIDsAreNoOps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	store := testsupport.MustOpenStore(t, path)
	ctx := context.Background()

	if _, err := store.Add(ctx, "/r", "main", "keep me"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read queue: %v", err)
	}

	if err := store.UpdateStatus(ctx, "missing", queue.StatusFailed); err != nil {
		t.Fatalf("UpdateStatus on unknown id should not fail: %v", err)
	}
	removed, err := store.Remove(ctx, "missing")
	if err != nil {
		t.Fatalf("Remove on unknown id should not fail: %v", err)
	}
	if removed {
		t.Fatal("expected removed=false for unknown id")
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read queue: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Fatalf("queue file changed:\nbefore=%s\nafter=%s", before, after)
	}
}

func TestRemoveIgnoresStatus(t *testing.T) {
	store := testsupport.MustOpenStore(t, filepath.Join(t.TempDir(), "queue.json"))
	ctx := context.Background()

	a, _ := store.Add(ctx, "/r", "main", "a")
	b, _ := store.Add(ctx, "/r", "main", "b")
	c, _ := store.Add(ctx, "/r", "main", "c")
	if err := store.UpdateStatus(ctx, b.ID, queue.StatusProcessing); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	removed, err := store.Remove(ctx, b.ID)
	if err != nil || !removed {
		t.Fatalf("expected processing task removed, removed=%v err=%v", removed, err)
	}

	tasks, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != a.ID || tasks[1].ID != c.ID {
		t.Fatalf("unexpected remaining tasks: %+v", tasks)
	}
}

func TestReloadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	store := testsupport.MustOpenStore(t, path)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		task, err := store.Add(ctx, fmt.Sprintf("/repo/%d", i), "main", fmt.Sprintf("prompt with \"quotes\" and\nnewlines %d", i))
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		if i%2 == 0 {
			if err := store.UpdateStatus(ctx, task.ID, queue.StatusCompleted); err != nil {
				t.Fatalf("UpdateStatus failed: %v", err)
			}
		}
	}
	before, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	reopened := testsupport.MustOpenStore(t, path)
	after, err := reopened.List(ctx)
	if err != nil {
		t.Fatalf("List after reopen failed: %v", err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("round trip mismatch:\nbefore=%+v\nafter=%+v", before, after)
	}
}

func TestFileFormatUsesOriginalFieldNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	store := testsupport.MustOpenStore(t, path)
	if _, err := store.Add(context.Background(), "/r", "main", "p"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read queue: %v", err)
	}
	for _, key := range []string{`"id"`, `"repoPath"`, `"baseBranch"`, `"prompt"`, `"createdAt"`, `"status": "queued"`} {
		if !strings.Contains(string(data), key) {
			t.Fatalf("expected %s in queue file:\n%s", key, data)
		}
	}
}

func TestOpenCreatesEmptyQueue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "queue.json")
	store := testsupport.MustOpenStore(t, path)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected queue file to exist: %v", err)
	}
	if strings.TrimSpace(string(data)) != "[]" {
		t.Fatalf("expected empty array, got %q", data)
	}
	if store.Path() != path {
		t.Fatalf("unexpected path %q", store.Path())
	}
}

func TestCorruptQueueLoadsEmptyAndWarns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt queue: %v", err)
	}

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	store := testsupport.MustOpenStore(t, path, queue.WithLogger(logger))
	ctx := context.Background()

	tasks, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List should swallow corruption, got %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected empty collection, got %+v", tasks)
	}
	if !strings.Contains(logs.String(), "queue_load_failed") {
		t.Fatalf("expected warning in logs, got %q", logs.String())
	}
	backup, err := os.ReadFile(path + ".corrupt")
	if err != nil {
		t.Fatalf("expected backup of corrupt file: %v", err)
	}
	if string(backup) != "{not json" {
		t.Fatalf("unexpected backup content %q", backup)
	}

	task, err := store.Add(ctx, "/r", "main", "after corruption")
	if err != nil {
		t.Fatalf("Add after corruption failed: %v", err)
	}
	tasks, err = store.List(ctx)
	if err != nil || len(tasks) != 1 || tasks[0].ID != task.ID {
		t.Fatalf("expected only new task, got %+v err=%v", tasks, err)
	}
}

func TestConcurrentStoresDoNotLoseUpdates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	first := testsupport.MustOpenStore(t, path)
	second := testsupport.MustOpenStore(t, path)
	ctx := context.Background()

	const perStore = 15
	var wg sync.WaitGroup
	errs := make(chan error, 2*perStore)
	for _, store := range []*queue.Store{first, second} {
		for i := 0; i < perStore; i++ {
			wg.Add(1)
			go func(s *queue.Store, n int) {
				defer wg.Done()
				if _, err := s.Add(ctx, "/r", "main", fmt.Sprintf("p%d", n)); err != nil {
					errs <- err
				}
			}(store, i)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Add failed: %v", err)
	}

	tasks, err := first.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(tasks) != 2*perStore {
		t.Fatalf("expected %d tasks, got %d", 2*perStore, len(tasks))
	}
}

func TestParseStatus(t *testing.T) {
	cases := []struct {
		in   string
		want queue.Status
		ok   bool
	}{
		{"queued", queue.StatusQueued, true},
		{" Processing ", queue.StatusProcessing, true},
		{"COMPLETED", queue.StatusCompleted, true},
		{"failed", queue.StatusFailed, true},
		{"pending", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := queue.ParseStatus(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseStatus(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
	if !queue.StatusFailed.IsTerminal() || !queue.StatusCompleted.IsTerminal() || queue.StatusProcessing.IsTerminal() {
		t.Fatal("unexpected IsTerminal results")
	}
}

func TestCreatedAtKeepsMillisecondsWhenZero(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	fixed := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	store := testsupport.MustOpenStore(t, path, queue.WithClock(func() time.Time { return fixed }))
	if _, err := store.Add(context.Background(), "/r", "main", "p"); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read queue: %v", err)
	}
	if !strings.Contains(string(data), `"createdAt": "2025-03-04T05:06:07.000Z"`) {
		t.Fatalf("expected fixed-width createdAt in queue file:\n%s", data)
	}
}

func TestForeignCreatedAtSurvivesRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	raw := `[
  {"id": "task-odd", "repoPath": "/r", "baseBranch": "main", "prompt": "p", "createdAt": "last tuesday", "status": "queued"},
  {"id": "task-ok", "repoPath": "/r", "baseBranch": "main", "prompt": "q", "createdAt": "2024-05-06T07:08:09.010Z", "status": "queued"}
]`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write queue: %v", err)
	}
	store := testsupport.MustOpenStore(t, path)
	ctx := context.Background()

	tasks, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected both records to load, got %+v", tasks)
	}
	if _, ok := tasks[0].CreatedTime(); ok {
		t.Fatalf("expected unparsable createdAt for %s", tasks[0].ID)
	}
	if ts, ok := tasks[1].CreatedTime(); !ok || !ts.Equal(time.Date(2024, 5, 6, 7, 8, 9, 10_000_000, time.UTC)) {
		t.Fatalf("unexpected parsed createdAt %v ok=%v", ts, ok)
	}

	if err := store.UpdateStatus(ctx, "task-ok", queue.StatusFailed); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if got := testsupport.MustGet(t, store, "task-odd").CreatedAt; got != "last tuesday" {
		t.Fatalf("createdAt rewritten to %q", got)
	}
	if got := testsupport.MustGet(t, store, "task-ok").CreatedAt; got != "2024-05-06T07:08:09.010Z" {
		t.Fatalf("createdAt rewritten to %q", got)
	}
}
