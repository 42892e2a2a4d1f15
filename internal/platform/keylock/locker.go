package keylock

import (
	"context"
	"slices"
	"sync"
)

// Locker hands out exclusive locks on string keys. Locks for several keys
// are always taken in sorted order, so two callers asking for overlapping
// key sets cannot deadlock each other.
type Locker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func New() *Locker {
	return &Locker{slots: make(map[string]*slot)}
}

// Lock blocks until every key is held or ctx is done. The returned func
// releases all keys and must be called exactly once.
func (l *Locker) Lock(ctx context.Context, keys ...string) (func(), error) {
	ordered := normalize(keys)
	acquired := make([]string, 0, len(ordered))

	for _, key := range ordered {
		s := l.ref(key)
		select {
		case s.ch <- struct{}{}:
			acquired = append(acquired, key)
		case <-ctx.Done():
			l.unref(key)
			l.release(acquired)
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.release(acquired) })
	}, nil
}

// Held reports how many keys currently have holders or waiters.
func (l *Locker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func (l *Locker) release(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		l.mu.Lock()
		s := l.slots[keys[i]]
		l.mu.Unlock()
		<-s.ch
		l.unref(keys[i])
	}
}

func (l *Locker) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Locker) unref(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[key]
	if !ok {
		return
	}
	s.refs--
	if s.refs <= 0 {
		delete(l.slots, key)
	}
}

func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if key == "" {
			continue
		}
		out = append(out, key)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
