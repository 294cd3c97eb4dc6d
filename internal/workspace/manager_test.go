package workspace_test

import (
	"context"
	"errors"
	"io"
	"os"
	osexec "os/exec"
	"path/filepath"
	"reflect"
	"testing"

	"agenttodo/internal/command"
	"agenttodo/internal/queue"
	"agenttodo/internal/testsupport"
	"agenttodo/internal/workspace"
)

func sampleTask(repo string) queue.Task {
	return queue.Task{
		ID:         "task-1700000000000-abc1234",
		RepoPath:   repo,
		BaseBranch: "main",
		Prompt:     "fix the bug",
		CreatedAt:  "2024-01-01T00:00:00.000Z",
		Status:     queue.StatusProcessing,
	}
}

func TestPathForUsesRepositoryBaseName(t *testing.T) {
	cases := []struct {
		repo string
		want string
	}{
		{"/src/myrepo", "/wt/myrepo-t1"},
		{"/src/myrepo/", "/wt/myrepo-t1"},
		{"/src/nested/other", "/wt/other-t1"},
	}
	for _, tc := range cases {
		if got := workspace.PathFor("/wt", tc.repo, "t1"); got != tc.want {
			t.Fatalf("PathFor(%q) = %q, want %q", tc.repo, got, tc.want)
		}
	}
}

func TestBranchName(t *testing.T) {
	if got := workspace.BranchName("task-1-abc"); got != "task-task-1-abc" {
		t.Fatalf("BranchName = %q", got)
	}
}

func TestProvisionRunsWorktreeAddInRepository(t *testing.T) {
	root := filepath.Join(t.TempDir(), "worktrees")
	exec := testsupport.NewFakeExecutor()
	mgr := workspace.NewManager(root, workspace.WithExecutor(exec))

	task := sampleTask("/src/myrepo")
	ws, err := mgr.Provision(context.Background(), task)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}

	wantPath := filepath.Join(root, "myrepo-"+task.ID)
	if ws.Path != wantPath {
		t.Fatalf("path = %q, want %q", ws.Path, wantPath)
	}
	if ws.Branch != "task-"+task.ID {
		t.Fatalf("branch = %q", ws.Branch)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		t.Fatalf("expected worktree root to be created: %v", err)
	}

	calls := exec.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 git call, got %d: %v", len(calls), exec.Lines())
	}
	call := calls[0]
	if call.Binary != "git" || call.Dir != "/src/myrepo" {
		t.Fatalf("unexpected invocation %+v", call)
	}
	wantArgs := []string{"worktree", "add", "-b", ws.Branch, wantPath, "main"}
	if !reflect.DeepEqual(call.Args, wantArgs) {
		t.Fatalf("args = %v, want %v", call.Args, wantArgs)
	}
}

func TestProvisionFailureWrapsErrProvision(t *testing.T) {
	exec := testsupport.NewFakeExecutor()
	exec.ExitWith("git worktree add", 128)
	mgr := workspace.NewManager(t.TempDir(), workspace.WithExecutor(exec))

	_, err := mgr.Provision(context.Background(), sampleTask("/src/myrepo"))
	if !errors.Is(err, workspace.ErrProvision) {
		t.Fatalf("expected ErrProvision, got %v", err)
	}
	if code := command.ExitCode(err); code != 128 {
		t.Fatalf("exit code = %d, want 128", code)
	}
}

func TestProvisionLaunchFailureWrapsErrProvision(t *testing.T) {
	mgr := workspace.NewManager(t.TempDir(), workspace.WithGitBinary(filepath.Join(t.TempDir(), "no-git")))

	_, err := mgr.Provision(context.Background(), sampleTask(t.TempDir()))
	if !errors.Is(err, workspace.ErrProvision) || !errors.Is(err, command.ErrLaunch) {
		t.Fatalf("expected ErrProvision wrapping ErrLaunch, got %v", err)
	}
}

func TestDisposeRemovesWorktree(t *testing.T) {
	exec := testsupport.NewFakeExecutor()
	mgr := workspace.NewManager("/wt", workspace.WithExecutor(exec), workspace.WithGitBinary("/usr/bin/git"))
	ws := mgr.Plan(sampleTask("/src/myrepo"))

	if err := mgr.Dispose(context.Background(), ws); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	calls := exec.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 call, got %v", exec.Lines())
	}
	if calls[0].Binary != "/usr/bin/git" || calls[0].Dir != "/src/myrepo" {
		t.Fatalf("unexpected invocation %+v", calls[0])
	}
	if want := []string{"worktree", "remove", ws.Path}; !reflect.DeepEqual(calls[0].Args, want) {
		t.Fatalf("args = %v, want %v", calls[0].Args, want)
	}

	exec.ExitWith("/usr/bin/git worktree remove", 1)
	if err := mgr.Dispose(context.Background(), ws); !errors.Is(err, workspace.ErrDispose) {
		t.Fatalf("expected ErrDispose, got %v", err)
	}
}

func TestRemovalCommand(t *testing.T) {
	mgr := workspace.NewManager("/wt")
	ws := mgr.Plan(sampleTask("/src/myrepo"))

	want := "cd /src/myrepo && git worktree remove /wt/myrepo-task-1700000000000-abc1234"
	if got := mgr.RemovalCommand(ws); got != want {
		t.Fatalf("RemovalCommand = %q, want %q", got, want)
	}
}

func TestProvisionWithRealGit(t *testing.T) {
	if _, err := osexec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	repo := filepath.Join(t.TempDir(), "repo")
	run := func(dir string, args ...string) {
		t.Helper()
		spec := command.Spec{Binary: "git", Args: args, Dir: dir, Stdout: io.Discard, Stderr: io.Discard}
		if err := (command.OSExecutor{}).Run(context.Background(), spec); err != nil {
			t.Fatalf("git %v: %v", args, err)
		}
	}
	if err := os.MkdirAll(repo, 0o755); err != nil {
		t.Fatal(err)
	}
	run(repo, "init", "-q")
	run(repo, "-c", "user.email=t@example.com", "-c", "user.name=t", "commit", "-q", "--allow-empty", "-m", "init")
	run(repo, "branch", "-M", "main")

	root := filepath.Join(t.TempDir(), "worktrees")
	mgr := workspace.NewManager(root, workspace.WithOutput(io.Discard, io.Discard))
	ws, err := mgr.Provision(context.Background(), sampleTask(repo))
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if _, err := os.Stat(filepath.Join(ws.Path, ".git")); err != nil {
		t.Fatalf("expected worktree checkout: %v", err)
	}
	if err := mgr.Dispose(context.Background(), ws); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if _, err := os.Stat(ws.Path); !os.IsNotExist(err) {
		t.Fatalf("expected worktree removed, stat err = %v", err)
	}
}
