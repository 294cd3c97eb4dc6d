package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"agenttodo/internal/config"
	"agenttodo/internal/queue"
	"agenttodo/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	configPath string
	baseDir    string
	commandLog string
	repo       string
}

// setupCLITestEnv writes a config pointing at temp directories, a stub git
// that fakes worktree add/remove, and a stub runner. Both stubs append their
// working directory and arguments to commandLog.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("AGENT_TODO_RUNNER", "")

	env := &cliTestEnv{
		baseDir:    base,
		commandLog: filepath.Join(base, "commands.log"),
		repo:       filepath.Join(base, "src", "myrepo"),
	}
	if err := os.MkdirAll(env.repo, 0o755); err != nil {
		t.Fatalf("mkdir repo: %v", err)
	}

	binDir := filepath.Join(base, "bin")
	testsupport.WriteScript(t, filepath.Join(binDir, "git"), fmt.Sprintf(`echo "git $PWD $*" >> %q
case "$2" in
  add) mkdir -p "$5" ;;
  remove) rm -rf "$3" ;;
esac
exit 0`, env.commandLog))
	env.writeRunner(t, 0)

	env.cfg = testsupport.NewConfig(t, testsupport.WithRunner(filepath.Join(binDir, "agent")))
	env.cfg.Git.Binary = filepath.Join(binDir, "git")
	env.cfg.Logging.Level = "error"

	env.configPath = filepath.Join(homeDir, ".config", "agent-todo", "config.toml")
	writeTestConfig(t, env.configPath, env.cfg)
	env.store = testsupport.MustOpenStore(t, env.cfg.Paths.QueueFile)
	return env
}

func (e *cliTestEnv) writeRunner(t *testing.T, exitCode int) {
	t.Helper()
	testsupport.WriteScript(t, filepath.Join(e.baseDir, "bin", "agent"), fmt.Sprintf(`echo "agent $PWD $*" >> %q
exit %d`, e.commandLog, exitCode))
}

func (e *cliTestEnv) commands(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(e.commandLog)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read command log: %v", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	quoted := make([]string, 0, len(cfg.Runner.Args))
	for _, arg := range cfg.Runner.Args {
		quoted = append(quoted, fmt.Sprintf("%q", arg))
	}
	content := fmt.Sprintf(`[paths]
queue_file = %q
worktree_dir = %q
log_dir = %q

[git]
binary = %q

[runner]
binary = %q
args = [%s]

[history]
enabled = %t

[logging]
level = %q
`,
		cfg.Paths.QueueFile,
		cfg.Paths.WorktreeDir,
		cfg.Paths.LogDir,
		cfg.Git.Binary,
		cfg.Runner.Binary,
		strings.Join(quoted, ", "),
		cfg.History.Enabled,
		cfg.Logging.Level,
	)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func requireNotContains(t *testing.T, output, substr string) {
	t.Helper()
	if strings.Contains(output, substr) {
		t.Fatalf("expected %q not to contain %q", output, substr)
	}
}
