package cache

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/rotisserie/eris"

	"github.com/Norgate-AV/xsys/internal/utils"
)

// lockRetryDelay is how often a blocked Lock polls the lock file
const lockRetryDelay = 100 * time.Millisecond

// Lock takes the advisory lock of a target, blocking until it is available or ctx is done.
// Builds of different targets use different lock files and never wait on each other.
func (c *Cache) Lock(ctx context.Context, target string) (func(), error) {
	if !utils.ValidTargetName(target) {
		return nil, eris.Wrapf(ErrInvalidKey, "%q", target)
	}

	lockDir := filepath.Join(c.root, locksDirName)
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, eris.Wrapf(ErrUnavailable, "failed to create lock directory: %v", err)
	}

	fl := flock.New(filepath.Join(lockDir, target+".lock"))

	locked, err := fl.TryLock()
	if err != nil {
		return nil, eris.Wrapf(ErrUnavailable, "failed to lock %s: %v", target, err)
	}

	if !locked {
		c.log.Info().Str("target", target).Msg("Blocking waiting for file lock on sysroot")

		locked, err = fl.TryLockContext(ctx, lockRetryDelay)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to lock %s", target)
		}

		if !locked {
			return nil, eris.Errorf("failed to lock %s", target)
		}
	}

	c.log.Debug().Str("target", target).Str("lock", fl.Path()).Msg("acquired sysroot lock")

	return func() {
		if err := fl.Unlock(); err != nil {
			c.log.Warn().Err(err).Str("target", target).Msg("failed to release sysroot lock")
		}
	}, nil
}
