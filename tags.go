package netsocket

import "sync"

// TagStore holds session-scoped key/value data attached to one
// connection's binding. It is cleared whenever the connection unbinds.
type TagStore struct {
	mu sync.RWMutex
	m  map[string]any
}

func newTagStore() *TagStore {
	return &TagStore{m: make(map[string]any)}
}

// Set stores value under key, replacing any previous value.
func (t *TagStore) Set(key string, value any) {
	t.mu.Lock()
	t.m[key] = value
	t.mu.Unlock()
}

// Get returns the value stored under key and whether it was present.
func (t *TagStore) Get(key string) (any, bool) {
	t.mu.RLock()
	v, ok := t.m[key]
	t.mu.RUnlock()
	return v, ok
}

// Delete removes key from the store.
func (t *TagStore) Delete(key string) {
	t.mu.Lock()
	delete(t.m, key)
	t.mu.Unlock()
}

// Len returns the number of stored keys.
func (t *TagStore) Len() int {
	t.mu.RLock()
	n := len(t.m)
	t.mu.RUnlock()
	return n
}

// Clear removes all keys.
func (t *TagStore) Clear() {
	t.mu.Lock()
	t.m = make(map[string]any)
	t.mu.Unlock()
}
