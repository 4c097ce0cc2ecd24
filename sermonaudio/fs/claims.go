package fs

import (
	"errors"
	"os"
	"sync"

	"github.com/gofrs/flock"
)

var ErrClaimed = errors.New("destination is being written by another job")

// Claims guarantees at most one writer per destination: in-process through
// a table of held paths, across processes through a lock file next to the
// destination.
type Claims struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewClaims() *Claims {
	return &Claims{
		mu:   sync.Mutex{},
		held: make(map[string]struct{}),
	}
}

// Acquire claims d or fails with ErrClaimed. The destination directory must
// exist. The returned release must be called once writing is over.
func (c *Claims) Acquire(d Destination) (release func() error, err error) {
	c.mu.Lock()
	if _, ok := c.held[d.Path]; ok {
		c.mu.Unlock()
		return nil, ErrClaimed
	}
	c.held[d.Path] = struct{}{}
	c.mu.Unlock()

	forget := func() {
		c.mu.Lock()
		delete(c.held, d.Path)
		c.mu.Unlock()
	}

	lockPath := d.Path + lockSuffix
	fl := flock.New(lockPath)
	ok, err := fl.TryLock()
	if nil != err {
		forget()
		return nil, &Error{Op: "lock", Path: lockPath, Err: err}
	}
	if !ok {
		forget()
		return nil, ErrClaimed
	}

	return func() error {
		defer forget()

		// The lock file goes away while still locked so that no other
		// process can lock the same inode after we let go.
		var errs []error
		if err := os.Remove(lockPath); nil != err && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, &Error{Op: "remove", Path: lockPath, Err: err})
		}
		if err := fl.Unlock(); nil != err {
			errs = append(errs, &Error{Op: "unlock", Path: lockPath, Err: err})
		}

		return errors.Join(errs...)
	}, nil
}
