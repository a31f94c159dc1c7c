// Package keylock provides mutual exclusion per string key.
package keylock

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// Locker hands out one mutex per key. Entries are dropped once no goroutine
// holds or waits for them.
type Locker struct {
	locks *xsync.Map[string, *entry]
}

func New() *Locker {
	return &Locker{locks: xsync.NewMap[string, *entry]()}
}

// Lock blocks until key is free and returns the matching unlock function.
func (l *Locker) Lock(key string) (unlock func()) {
	e, _ := l.locks.Compute(key, func(old *entry, loaded bool) (*entry, xsync.ComputeOp) {
		if !loaded {
			old = &entry{}
		}
		old.refs++
		return old, xsync.UpdateOp
	})

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			l.locks.Compute(key, func(old *entry, loaded bool) (*entry, xsync.ComputeOp) {
				if !loaded {
					return nil, xsync.CancelOp
				}
				old.refs--
				if old.refs <= 0 {
					return nil, xsync.DeleteOp
				}
				return old, xsync.UpdateOp
			})
		})
	}
}

// Len returns the number of keys currently locked or awaited.
func (l *Locker) Len() int {
	return l.locks.Size()
}
