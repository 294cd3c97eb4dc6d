package queue

import (
	"context"
	"fmt"
	"time"

	"agenttodo/internal/logging"
)

const lockRetryDelay = 25 * time.Millisecond

// withLock serializes fn against other goroutines using this Store and against
// other processes using the same queue file.
func (s *Store) withLock(ctx context.Context, exclusive bool, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		ok  bool
		err error
	)
	if exclusive {
		ok, err = s.lock.TryLockContext(ctx, lockRetryDelay)
	} else {
		ok, err = s.lock.TryRLockContext(ctx, lockRetryDelay)
	}
	if err != nil {
		return fmt.Errorf("lock queue %s: %w", s.lock.Path(), err)
	}
	if !ok {
		return fmt.Errorf("lock queue %s: lock not acquired", s.lock.Path())
	}
	defer func() {
		if unlockErr := s.lock.Unlock(); unlockErr != nil {
			s.logger.Warn("failed to release queue lock", logging.String("lock", s.lock.Path()), logging.Error(unlockErr))
		}
	}()

	return fn()
}
