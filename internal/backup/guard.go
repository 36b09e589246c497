package backup

import (
	"sync"

	apperrors "github.com/bastionproject/bastion/internal/errors"
)

// Guard is the process-wide mutual-exclusion flag for backup production.
// At most one backup of any kind runs at a time; a request arriving while
// one is running fails immediately and is never queued. This guards a
// single process instance only - horizontally scaled deployments need a
// distributed lease instead.
type Guard struct {
	mu   sync.Mutex
	busy bool
}

// Acquire claims the guard or fails with ErrBackupInProgress.
func (g *Guard) Acquire() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.busy {
		return apperrors.ErrBackupInProgress
	}
	g.busy = true
	return nil
}

// Release frees the guard.
func (g *Guard) Release() {
	g.mu.Lock()
	g.busy = false
	g.mu.Unlock()
}

// Busy reports whether a backup is currently running.
func (g *Guard) Busy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.busy
}
