package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	log "github.com/sirupsen/logrus"

	"agentcfg/internal/common"
	"agentcfg/internal/util"
)

// Lock is an advisory single-writer lock on a workspace. It guards the
// command boundary only; the engine itself does not lock.
type Lock struct {
	fl *flock.Flock
}

// AcquireLock takes the lock file at path, retrying while another process
// holds it. The returned error wraps common.ErrLocked when the lock stayed
// busy for every attempt.
func AcquireLock(ctx context.Context, path string, attempts int, delay time.Duration) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, common.NewIOError("create directory", filepath.Dir(path), err)
	}

	fl := flock.New(path)
	err := util.Retry(ctx, func() error {
		locked, err := fl.TryLock()
		if err != nil {
			return fmt.Errorf("failed to acquire lock: %w", err)
		}
		if !locked {
			log.WithField("lock", path).Debug("workspace: lock busy, waiting")
			return fmt.Errorf("%w: %s is held by another agentcfg process", common.ErrLocked, path)
		}
		return nil
	}, util.LockRetryOptions(ctx, attempts, delay)...)
	if err != nil {
		return nil, err
	}
	return &Lock{fl: fl}, nil
}

// Path returns the lock file path
func (l *Lock) Path() string { return l.fl.Path() }

// Release unlocks and closes the lock file.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
