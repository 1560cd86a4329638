package service

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestUserLocks_SerializesSameUser(t *testing.T) {
	locks := NewUserLocks()
	userID := uuid.New()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.LockUsers(userID)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestUserLocks_CrossedPairsDoNotDeadlock(t *testing.T) {
	locks := NewUserLocks()
	a, b := uuid.New(), uuid.New()

	// Opposite argument orders must still acquire in the same global order.
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unlock := locks.LockUsers(a, b)
			unlock()
		}()
		go func() {
			defer wg.Done()
			unlock := locks.LockUsers(b, a)
			unlock()
		}()
	}
	wg.Wait()
}

func TestUserLocks_DuplicateIDsCollapsed(t *testing.T) {
	locks := NewUserLocks()
	userID := uuid.New()

	unlock := locks.LockUsers(userID, userID, userID)
	unlock()

	// A second acquisition proves the duplicates did not self-deadlock
	// and the release left the mutex unlocked.
	unlock = locks.LockUsers(userID)
	unlock()
}

func TestUserLocks_LockAllExcludesUserLocks(t *testing.T) {
	locks := NewUserLocks()
	userID := uuid.New()

	unlockAll := locks.LockAll()

	done := make(chan struct{})
	go func() {
		unlock := locks.LockUsers(userID)
		unlock()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("user lock acquired while exclusive gate held")
	case <-time.After(50 * time.Millisecond):
	}

	unlockAll()
	<-done
}
