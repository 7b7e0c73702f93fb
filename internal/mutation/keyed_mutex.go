package mutation

import (
	"context"
	"sync"
)

// KeyedMutex serializes work per key. Different keys never block each
// other; waiting honours context cancellation.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// NewKeyedMutex creates an empty keyed mutex
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock)}
}

// Lock acquires key, waiting for earlier holders in arrival order as far
// as the runtime's channel fairness allows
func (m *KeyedMutex) Lock(ctx context.Context, key string) error {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		m.release(key, l)
		return ctx.Err()
	}
}

// Unlock releases key. It must be held.
func (m *KeyedMutex) Unlock(key string) {
	m.mu.Lock()
	l, ok := m.locks[key]
	m.mu.Unlock()
	if !ok {
		panic("mutation: unlock of unlocked key " + key)
	}
	<-l.sem
	m.release(key, l)
}

func (m *KeyedMutex) release(key string, l *keyLock) {
	m.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
	m.mu.Unlock()
}

// Held reports whether anyone holds or waits for key
func (m *KeyedMutex) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.locks[key]
	return ok
}
