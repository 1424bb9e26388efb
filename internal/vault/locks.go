package vault

import (
	"sort"
	"sync"
)

// Locker serializes mutations per vault path. Operators acquire the locks for
// every path they will touch before reading; multi-path acquisition happens
// in sorted order so two operations can never deadlock on each other.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// NewLocker creates an empty Locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*entry)}
}

// Lock acquires the locks for paths (duplicates ignored) and returns the
// function that releases them. Release order is the reverse of acquisition.
func (l *Locker) Lock(paths ...string) (unlock func()) {
	uniq := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		uniq[p] = struct{}{}
	}
	ordered := make([]string, 0, len(uniq))
	for p := range uniq {
		ordered = append(ordered, p)
	}
	sort.Strings(ordered)

	entries := make([]*entry, len(ordered))
	for i, p := range ordered {
		entries[i] = l.acquire(p)
		entries[i].mu.Lock()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(ordered) - 1; i >= 0; i-- {
				entries[i].mu.Unlock()
				l.release(ordered[i])
			}
		})
	}
}

func (l *Locker) acquire(path string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.locks[path]
	if !ok {
		e = &entry{}
		l.locks[path] = e
	}
	e.refs++
	return e
}

func (l *Locker) release(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.locks[path]
	if !ok {
		return
	}
	e.refs--
	if e.refs == 0 {
		delete(l.locks, path)
	}
}
