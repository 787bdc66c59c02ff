package db

import (
	"sync"
)

// handleRegistry shares one open handle per key across every store in the
// process. Stores acquire a reference on first use and release it on Close;
// the handle is closed when the last reference is released.
type handleRegistry[T any] struct {
	close func(T) error

	mu      sync.Mutex
	entries map[string]*sharedHandle[T]
	opens   int
}

type sharedHandle[T any] struct {
	value T
	refs  int
}

func newHandleRegistry[T any](close func(T) error) *handleRegistry[T] {
	return &handleRegistry[T]{
		close:   close,
		entries: make(map[string]*sharedHandle[T]),
	}
}

// acquire returns the handle for key, calling open if no store holds it.
func (r *handleRegistry[T]) acquire(key string, open func() (T, error)) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[key]; ok {
		entry.refs++
		return entry.value, nil
	}

	value, err := open()
	if err != nil {
		var zero T
		return zero, err
	}
	r.opens++
	r.entries[key] = &sharedHandle[T]{value: value, refs: 1}
	return value, nil
}

// release drops one reference to key.
func (r *handleRegistry[T]) release(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok {
		return nil
	}
	entry.refs--
	if entry.refs > 0 {
		return nil
	}
	delete(r.entries, key)
	return r.close(entry.value)
}

func (r *handleRegistry[T]) refs(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[key]; ok {
		return entry.refs
	}
	return 0
}

func (r *handleRegistry[T]) opened() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opens
}
