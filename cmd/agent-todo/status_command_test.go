package main

import (
	"os"
	"path/filepath"
	"testing"

	"agenttodo/internal/testsupport"
)

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.AddTask(t, env.store, env.repo, "main", "p")

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Readiness ==")
	requireContains(t, out, "Worktree directory:")
	requireContains(t, out, "[OK]")
	requireContains(t, out, "Queued")
	requireContains(t, out, "[OK] worker can run")
	requireNotContains(t, out, "[WARN]")
	requireNotContains(t, out, "\x1b[")
}

func TestStatusWarnsWithoutConfigFile(t *testing.T) {
	setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, "")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "[WARN]")
	requireContains(t, out, "not found, using defaults")
}

func TestStatusReportsMissingRunner(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Runner.Binary = filepath.Join(env.baseDir, "missing-agent")
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Runner:")
	requireContains(t, out, "[ERROR]")
	requireContains(t, out, "fix the failed checks before running the worker")
	requireContains(t, out, "Queue is empty")
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)
	target := filepath.Join(env.baseDir, "new", "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration to "+target)
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file: %v", err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected error when config exists")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path: "+env.configPath)
	requireContains(t, out, "Configuration valid")
}

func TestConfigValidateRejectsBadConfig(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := os.WriteFile(env.configPath, []byte("[logging]\nformat = \"xml\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runCLI(t, []string{"config", "validate"}, env.configPath); err == nil {
		t.Fatal("expected validation error")
	}
}
