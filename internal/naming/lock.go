package naming

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/gofrs/flock"
)

// LockFileName is created in the destination root while a run holds it.
const LockFileName = ".photokeeper.lock"

// DirLocks serializes name selection per destination directory. Directories
// are hashed onto a fixed set of mutexes, so unrelated directories may share
// one.
type DirLocks struct {
	stripes []sync.Mutex
}

// NewDirLocks returns a lock set with n stripes (at least one).
func NewDirLocks(n int) *DirLocks {
	if n < 1 {
		n = 1
	}
	return &DirLocks{stripes: make([]sync.Mutex, n)}
}

// Lock blocks until dir's stripe is held and returns its release function.
func (l *DirLocks) Lock(dir string) (unlock func()) {
	m := &l.stripes[l.stripe(dir)]
	m.Lock()
	return m.Unlock
}

func (l *DirLocks) stripe(dir string) int {
	return int(xxhash.Sum64String(filepath.Clean(dir)) % uint64(len(l.stripes)))
}

// Claims records destination paths handed out during a run that may not
// exist on disk yet, e.g. in a dry run.
type Claims struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

// NewClaims returns an empty claim set.
func NewClaims() *Claims {
	return &Claims{paths: make(map[string]struct{})}
}

// Claim marks path as taken.
func (c *Claims) Claim(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths[filepath.Clean(path)] = struct{}{}
}

// Has reports whether path was claimed.
func (c *Claims) Has(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.paths[filepath.Clean(path)]
	return ok
}

// ErrDestinationLocked means another process holds the destination lock.
var ErrDestinationLocked = errors.New("destination is locked by another process")

// DestLock is an advisory file lock on a destination root, keeping two
// runs from picking the same names in the same tree.
type DestLock struct {
	path string
	lock *flock.Flock
}

// NewDestLock returns an unlocked lock for root.
func NewDestLock(root string) *DestLock {
	path := filepath.Join(root, LockFileName)
	return &DestLock{path: path, lock: flock.New(path)}
}

// Path returns the lock file path.
func (d *DestLock) Path() string {
	return d.path
}

// TryLock acquires the lock without blocking. The destination root must
// exist.
func (d *DestLock) TryLock() error {
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", d.path, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrDestinationLocked, d.path)
	}
	return nil
}

// Unlock releases the lock.
func (d *DestLock) Unlock() error {
	return d.lock.Unlock()
}
