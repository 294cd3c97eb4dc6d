package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRunner(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.QueueFile == "" {
		return errors.New("paths.queue_file must be set")
	}
	if strings.HasSuffix(c.Paths.QueueFile, string(filepath.Separator)) {
		return fmt.Errorf("paths.queue_file must name a file, got %q", c.Paths.QueueFile)
	}
	if c.Paths.WorktreeDir == "" {
		return errors.New("paths.worktree_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateRunner() error {
	if c.Runner.Binary == "" {
		return errors.New("runner.binary must be set")
	}
	placeholders := 0
	for _, arg := range c.Runner.Args {
		if arg == PromptPlaceholder {
			placeholders++
		}
	}
	if placeholders > 1 {
		return fmt.Errorf("runner.args may contain %s at most once", PromptPlaceholder)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (use console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
