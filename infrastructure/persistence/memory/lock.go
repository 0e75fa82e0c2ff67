package memory

import (
	"context"
	"sync"
	"time"

	"coredetect/application/ports"
	pkgerrors "coredetect/pkg/errors"

	"github.com/google/uuid"
)

type heldLock struct {
	token     string
	expiresAt time.Time
}

// InMemoryRunLock is a process-local RunLock with expiry
type InMemoryRunLock struct {
	mu    sync.Mutex
	locks map[string]heldLock
	now   func() time.Time
}

// NewInMemoryRunLock creates a new in-memory lock
func NewInMemoryRunLock() *InMemoryRunLock {
	return &InMemoryRunLock{locks: make(map[string]heldLock), now: time.Now}
}

var _ ports.RunLock = (*InMemoryRunLock)(nil)

// Acquire takes the lock unless an unexpired holder exists
func (l *InMemoryRunLock) Acquire(ctx context.Context, resource, owner string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if held, ok := l.locks[resource]; ok && now.Before(held.expiresAt) {
		return nil, pkgerrors.NewConflictError("lock already held").WithDetail("resource", resource)
	}

	token := owner + "_" + uuid.NewString()
	l.locks[resource] = heldLock{token: token, expiresAt: now.Add(ttl)}

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if held, ok := l.locks[resource]; ok && held.token == token {
			delete(l.locks, resource)
		}
		return nil
	}, nil
}
