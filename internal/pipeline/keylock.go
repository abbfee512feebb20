package pipeline

import (
	"context"
	"sort"
	"sync"
)

// Locker serializes runs that touch the same document ids. The returned
// unlock func must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, ids ...string) (unlock func(), err error)
}

// KeyLocker is an in-process Locker keyed by document id.
type KeyLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func NewKeyLocker() *KeyLocker {
	return &KeyLocker{locks: make(map[string]*keyLock)}
}

// Lock takes every id in sorted order so overlapping multi-id runs cannot deadlock.
func (l *KeyLocker) Lock(ctx context.Context, ids ...string) (func(), error) {
	keys := lockOrder(ids)
	held := make([]string, 0, len(keys))
	for _, key := range keys {
		if err := l.lockOne(ctx, key); err != nil {
			l.unlockAll(held)
			return nil, err
		}
		held = append(held, key)
	}
	var once sync.Once
	return func() {
		once.Do(func() { l.unlockAll(held) })
	}, nil
}

func (l *KeyLocker) lockOne(ctx context.Context, key string) error {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.release(key, entry, false)
		return ctx.Err()
	}
}

func (l *KeyLocker) unlockAll(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		l.mu.Lock()
		entry := l.locks[keys[i]]
		l.mu.Unlock()
		l.release(keys[i], entry, true)
	}
}

func (l *KeyLocker) release(key string, entry *keyLock, held bool) {
	if held {
		<-entry.ch
	}
	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}

// lockOrder returns the distinct non-empty ids in sorted order.
func lockOrder(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

var _ Locker = (*KeyLocker)(nil)
