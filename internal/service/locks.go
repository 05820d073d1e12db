// SPDX-License-Identifier: Apache-2.0

package service

import (
	"sync"

	"github.com/google/uuid"
)

// planLocks serializes load-mutate-save cycles per plan id within this
// process. The stored document itself carries no revision token, so
// without this two in-flight mutations of the same plan would interleave
// and the slower save would silently win.
type planLocks struct {
	mu    sync.Mutex
	plans map[uuid.UUID]*planLock
}

type planLock struct {
	mu   sync.Mutex
	refs int
}

func newPlanLocks() *planLocks {
	return &planLocks{
		plans: make(map[uuid.UUID]*planLock, 32),
	}
}

// Lock acquires the lock for one plan id and returns its unlock func.
func (l *planLocks) Lock(id uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.plans[id]
	if !ok {
		entry = &planLock{}
		l.plans[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.plans, id)
		}
		l.mu.Unlock()
	}
}
