package credential

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store used by tests and by the CLI dry-run
// path. It is safe for concurrent use.
type MemStore struct {
	mu      sync.Mutex
	entries map[string][]byte

	// Gets counts Get calls, letting tests assert how many times a
	// playback run touched the store.
	Gets int

	// Fail, when set, makes every call return this error.
	Fail error
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{entries: map[string][]byte{}}
}

func memKey(name, field string) string { return name + "/" + field }

// Get implements Store.
func (m *MemStore) Get(ctx context.Context, name, field string) (*Secret, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gets++
	if m.Fail != nil {
		return nil, m.Fail
	}
	val, ok := m.entries[memKey(name, field)]
	if !ok {
		return nil, ErrNotFound
	}
	return NewSecret(val), nil
}

// Set implements Store.
func (m *MemStore) Set(ctx context.Context, name, field string, value *Secret) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	buf := make([]byte, value.Len())
	copy(buf, value.Bytes())
	m.entries[memKey(name, field)] = buf
	return nil
}

// Delete implements Store.
func (m *MemStore) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	for _, field := range []string{FieldUsername, FieldPassword} {
		delete(m.entries, memKey(name, field))
	}
	return nil
}
