package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a task.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

// TimestampLayout is the createdAt format written for new tasks: UTC with
// millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders ts with TimestampLayout.
func FormatTimestamp(ts time.Time) string {
	return ts.UTC().Format(TimestampLayout)
}

// Task is one queued unit of work. JSON field names match the on-disk format.
//
// CreatedAt is kept as the stored text so a record written by another tool
// is loaded and rewritten unchanged.
type Task struct {
	ID         string `json:"id"`
	RepoPath   string `json:"repoPath"`
	BaseBranch string `json:"baseBranch"`
	Prompt     string `json:"prompt"`
	CreatedAt  string `json:"createdAt"`
	Status     Status `json:"status"`
}

// CreatedTime parses CreatedAt. ok is false when it is not RFC3339.
func (t Task) CreatedTime() (ts time.Time, ok bool) {
	ts, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(t.CreatedAt))
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether the worker will never touch a task in this status again.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
