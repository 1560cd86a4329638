package service

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// UserLocks serializes economy mutations per user within this process.
// Multi-user operations (sales, trades) must acquire all locks through
// LockUsers so that acquisition always happens in ascending UUID order,
// which rules out lock-order deadlocks.
//
// The gate RWMutex lets the marketplace shutdown switch exclude every
// in-flight economy operation at once: normal operations hold the read
// side for their critical section, the shutdown takes the write side.
type UserLocks struct {
	gate  sync.RWMutex
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewUserLocks creates an empty lock table.
func NewUserLocks() *UserLocks {
	return &UserLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *UserLocks) lockFor(userID uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[userID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[userID] = m
	}
	return m
}

// LockUsers acquires the gate's read side plus each user's mutex in
// ascending UUID order. Duplicate ids are collapsed. The returned
// function releases everything and must be deferred by the caller.
func (l *UserLocks) LockUsers(userIDs ...uuid.UUID) func() {
	l.gate.RLock()

	seen := make(map[uuid.UUID]struct{}, len(userIDs))
	unique := make([]uuid.UUID, 0, len(userIDs))
	for _, id := range userIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	sort.Slice(unique, func(i, j int) bool {
		return unique[i].String() < unique[j].String()
	})

	held := make([]*sync.Mutex, 0, len(unique))
	for _, id := range unique {
		m := l.lockFor(id)
		m.Lock()
		held = append(held, m)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
		l.gate.RUnlock()
	}
}

// LockAll takes the exclusive gate, blocking until every in-flight
// operation releases its read side. Only the marketplace shutdown and
// re-enable paths use this.
func (l *UserLocks) LockAll() func() {
	l.gate.Lock()
	return l.gate.Unlock
}
