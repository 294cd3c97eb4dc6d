package main

import (
	"os"
	"testing"
)

func TestLogsCommandFiltersByTask(t *testing.T) {
	env := setupCLITestEnv(t)
	content := "INFO [worker] Task task-a – processing task\nINFO [worker] Task task-b – processing task\n"
	if err := os.WriteFile(env.cfg.LogPath(), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "--task", "task-b"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "Task task-b")
	requireNotContains(t, out, "Task task-a")

	out, _, err = runCLI(t, []string{"logs", "-n", "1"}, env.configPath)
	if err != nil {
		t.Fatalf("logs -n 1: %v", err)
	}
	requireContains(t, out, "task-b")
	requireNotContains(t, out, "task-a")
}
