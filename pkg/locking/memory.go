package locking

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process keyed mutex.
type Memory struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch      chan struct{}
	holders int
}

func NewMemory() *Memory {
	return &Memory{locks: make(map[string]*entry)}
}

// Lock blocks until key is free or ctx is done.
func (m *Memory) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()

	e, ok := m.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		m.locks[key] = e
	}

	e.holders++
	m.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		m.forget(key, e)

		return nil, fmt.Errorf("%w: %s: %w", ErrLockTimeout, key, ctx.Err())
	}

	var once sync.Once

	return func() {
		once.Do(func() {
			<-e.ch
			m.forget(key, e)
		})
	}, nil
}

func (m *Memory) forget(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.holders--
	if e.holders == 0 {
		delete(m.locks, key)
	}
}

// Size returns the number of keys currently held or awaited.
func (m *Memory) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.locks)
}
