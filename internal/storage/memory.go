package storage

import (
	"context"
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

// Memory - хранилище в памяти процесса, используется в тестах и при
// недоступном файле базы
type Memory struct {
	// mu держит PutBatch целиком против одиночных чтений
	mu sync.RWMutex
	c  *gocache.Cache
}

func NewMemory() *Memory {
	return &Memory{
		c: gocache.New(gocache.NoExpiration, 0),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	val, found := m.c.Get(key)
	if !found {
		return nil, ErrMissing
	}

	data, ok := val.([]byte)
	if !ok {
		return nil, ErrMissing
	}

	// копия, чтобы вызывающий код не менял сохраненное значение
	out := make([]byte, len(data))
	copy(out, data)

	return out, nil
}

func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.set(key, value)

	return nil
}

func (m *Memory) PutBatch(_ context.Context, entries map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, value := range entries {
		m.set(key, value)
	}

	return nil
}

func (m *Memory) set(key string, value []byte) {
	data := make([]byte, len(value))
	copy(data, value)
	m.c.Set(key, data, gocache.NoExpiration)
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.c.Delete(key)
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.c.Flush()
	return nil
}

func (m *Memory) Close() error {
	return nil
}
