package lockmock

import (
	"context"
	"sync"

	"zkloan/internal/domain/lock"
)

var _ lock.Locker = (*Locker)(nil)

// Locker is an in-process lock.Locker with one mutex per key.
// Err, when set, is returned by every Acquire.
type Locker struct {
	mu    sync.Mutex
	keys  map[string]*sync.Mutex
	Err   error
	Taken []string
}

func New() *Locker { return &Locker{keys: map[string]*sync.Mutex{}} }

func (l *Locker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	if l.Err != nil {
		l.mu.Unlock()
		return nil, l.Err
	}
	if l.keys == nil {
		l.keys = map[string]*sync.Mutex{}
	}
	m, ok := l.keys[key]
	if !ok {
		m = &sync.Mutex{}
		l.keys[key] = m
	}
	l.Taken = append(l.Taken, key)
	l.mu.Unlock()

	m.Lock()
	var once sync.Once
	return func() { once.Do(m.Unlock) }, nil
}
