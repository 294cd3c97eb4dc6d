package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeGit()
	c.normalizeRunner()
	if err := c.normalizeHistory(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.QueueFile) == "" {
		c.Paths.QueueFile = defaultQueueFile
	}
	if c.Paths.QueueFile, err = expandPath(c.Paths.QueueFile); err != nil {
		return fmt.Errorf("paths.queue_file: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorktreeDir) == "" {
		c.Paths.WorktreeDir = defaultWorktreeDir
	}
	if c.Paths.WorktreeDir, err = expandPath(c.Paths.WorktreeDir); err != nil {
		return fmt.Errorf("paths.worktree_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeGit() {
	c.Git.Binary = strings.TrimSpace(c.Git.Binary)
	if c.Git.Binary == "" {
		c.Git.Binary = defaultGitBinary
	}
}

func (c *Config) normalizeRunner() {
	if value, ok := os.LookupEnv("AGENT_TODO_RUNNER"); ok && strings.TrimSpace(value) != "" {
		c.Runner.Binary = value
	}
	c.Runner.Binary = strings.TrimSpace(c.Runner.Binary)
	if c.Runner.Binary == "" {
		c.Runner.Binary = defaultRunner
	}
	if c.Runner.Args == nil {
		c.Runner.Args = []string{PromptPlaceholder}
	}
}

func (c *Config) normalizeHistory() error {
	if strings.TrimSpace(c.History.Path) == "" {
		c.History.Path = filepath.Join(c.Paths.LogDir, "history.db")
		return nil
	}
	var err error
	if c.History.Path, err = expandPath(c.History.Path); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
