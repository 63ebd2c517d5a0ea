// Package storage keeps per-browser state: the session token and the cart
// snapshot. A Store is bound to one browser; an Opener binds it per request.
package storage

import (
	"context"
	"errors"
	"net/http"
	"sync"
)

const (
	KeyToken = "token"
	KeyCart  = "cart"
)

var ErrNotFound = errors.New("storage: key not found")

type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

type Opener interface {
	Open(w http.ResponseWriter, r *http.Request) (Store, error)
}

// Memory is a Store for a single browser held in process memory.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// MemoryOpener keeps one Memory per visitor cookie.
type MemoryOpener struct {
	Visitors VisitorCookie

	mu     sync.Mutex
	stores map[string]*Memory
}

func NewMemoryOpener(secure bool) *MemoryOpener {
	return &MemoryOpener{
		Visitors: VisitorCookie{Secure: secure},
		stores:   make(map[string]*Memory),
	}
}

func (o *MemoryOpener) Open(w http.ResponseWriter, r *http.Request) (Store, error) {
	id := o.Visitors.Ensure(w, r)

	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.stores[id]
	if !ok {
		s = NewMemory()
		o.stores[id] = s
	}
	return s, nil
}
