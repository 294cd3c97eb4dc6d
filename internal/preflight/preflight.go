package preflight

import (
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"agenttodo/internal/config"
	"agenttodo/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every readiness check for the given config. Checks run
// concurrently; results keep the declaration order with the directory checks
// first.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	dirs := []struct{ name, path string }{
		{"Queue directory", filepath.Dir(cfg.Paths.QueueFile)},
		{"Worktree directory", cfg.Paths.WorktreeDir},
		{"Log directory", cfg.Paths.LogDir},
	}
	dirResults := make([]Result, len(dirs))
	var binResults []Result

	// Failures are reported as Results, so no goroutine returns an error;
	// the group is only the fan-out and join.
	var g errgroup.Group
	for i, dir := range dirs {
		g.Go(func() error {
			dirResults[i] = CheckDirectoryAccess(dir.name, dir.path)
			return nil
		})
	}
	g.Go(func() error {
		binResults = CheckBinaries(
			deps.Requirement{Name: "Git", Command: cfg.Git.Binary, Description: "creates and removes task worktrees"},
			deps.Requirement{Name: "Runner", Command: cfg.Runner.Binary, Description: "executes task prompts"},
		)
		return nil
	})
	_ = g.Wait()
	return append(dirResults, binResults...)
}

// Passed reports whether every result passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
