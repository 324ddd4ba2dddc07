package service

import (
	"sync"

	"github.com/google/uuid"
)

// BookLocks serializes copy-count changes per book within this process.
// The database row lock covers other instances.
type BookLocks struct {
	mutexes sync.Map
}

// NewBookLocks creates an empty lock table.
func NewBookLocks() *BookLocks {
	return &BookLocks{}
}

// getMutex returns a mutex for a specific book ID.
func (l *BookLocks) getMutex(bookID uuid.UUID) *sync.Mutex {
	value, _ := l.mutexes.LoadOrStore(bookID, &sync.Mutex{})
	return value.(*sync.Mutex)
}

// Lock acquires the book's mutex and returns its unlock function.
func (l *BookLocks) Lock(bookID uuid.UUID) func() {
	mutex := l.getMutex(bookID)
	mutex.Lock()
	return mutex.Unlock
}
