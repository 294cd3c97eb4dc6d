package config

const (
	defaultConfigPath  = "~/.config/agent-todo/config.toml"
	defaultQueueFile   = "~/.agent-todo/queue.json"
	defaultWorktreeDir = "~/worktrees"
	defaultLogDir      = "~/.agent-todo/logs"
	defaultGitBinary   = "git"
	defaultRunner      = "claude"
	defaultLogFormat   = "console"
	defaultLogLevel    = "info"

	// PromptPlaceholder marks the runner argument replaced by the task prompt.
	PromptPlaceholder = "{prompt}"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			QueueFile:   defaultQueueFile,
			WorktreeDir: defaultWorktreeDir,
			LogDir:      defaultLogDir,
		},
		Git: Git{
			Binary: defaultGitBinary,
		},
		Runner: Runner{
			Binary: defaultRunner,
			Args:   []string{PromptPlaceholder},
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
