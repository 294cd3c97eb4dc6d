package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const idSuffixLength = 7

// NewID returns a task identifier of the form task-<unix-millis>-<suffix>.
// The suffix is random hex so tasks created in the same millisecond differ.
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:idSuffixLength]
	return fmt.Sprintf("task-%d-%s", now.UnixMilli(), suffix)
}
