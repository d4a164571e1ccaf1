package sync

import (
	"fmt"
	"os"
	"path/filepath"
	stdsync "sync"

	"github.com/gofrs/flock"

	"github.com/wpsync/wpsync/internal/utils"
)

// OpLocks hands out per-site operation locks. Each lock couples an OS
// file lock, so concurrent wpsync processes exclude each other, with
// an in-process registry, so one process cannot start two operations
// on the same site.
type OpLocks struct {
	dir string

	mu   stdsync.Mutex
	held map[string]*flock.Flock
}

func NewOpLocks(dir string) *OpLocks {
	return &OpLocks{
		dir:  dir,
		held: make(map[string]*flock.Flock),
	}
}

// Acquire takes the exclusive lock for a site. It never blocks: if
// another operation already holds the site it returns ErrSiteBusy
// right away. The returned release is safe to call more than once.
func (l *OpLocks) Acquire(siteID string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[siteID]; ok {
		return nil, fmt.Errorf("site %s: %w", siteID, ErrSiteBusy)
	}

	if err := utils.EnsureDir(l.dir); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	fl := flock.New(filepath.Join(l.dir, siteID+".lock"))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock site %s: %w", siteID, err)
	}
	if !locked {
		return nil, fmt.Errorf("site %s: %w", siteID, ErrSiteBusy)
	}

	l.held[siteID] = fl

	var once stdsync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, siteID)
			l.mu.Unlock()

			if err := fl.Unlock(); err == nil {
				os.Remove(fl.Path())
			}
		})
	}
	return release, nil
}
