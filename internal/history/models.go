package history

import (
	"fmt"
	"strings"
	"time"
)

// Outcome is the final state of a run.
type Outcome string

const (
	OutcomeRunning         Outcome = "running"
	OutcomeCompleted       Outcome = "completed"
	OutcomeFailed          Outcome = "failed"
	OutcomeProvisionFailed Outcome = "provision_failed"
)

// ParseOutcome normalizes a textual outcome.
func ParseOutcome(value string) (Outcome, error) {
	switch o := Outcome(strings.ToLower(strings.TrimSpace(value))); o {
	case OutcomeRunning, OutcomeCompleted, OutcomeFailed, OutcomeProvisionFailed:
		return o, nil
	default:
		return "", fmt.Errorf("unknown run outcome %q", value)
	}
}

// Run is one worker attempt at a task.
type Run struct {
	ID            string
	TaskID        string
	RepoPath      string
	Branch        string
	WorkspacePath string
	StartedAt     time.Time
	FinishedAt    time.Time
	Outcome       Outcome
	Error         string
}

// Duration reports how long the run took, or zero while it is running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
