package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store. Safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	values map[string][]byte
	lists  map[string][]string
}

func NewMemory() *Memory {
	return &Memory{
		values: make(map[string][]byte),
		lists:  make(map[string][]string),
	}
}

func (m *Memory) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte{}, value...)
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte{}, v...), nil
}

func (m *Memory) ListPush(ctx context.Context, list, value string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[list] = append([]string{value}, m.lists[list]...)
	return int64(len(m.lists[list])), nil
}

func (m *Memory) ListRange(ctx context.Context, list string, start, stop int64) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	values := m.lists[list]
	lo, hi, ok := bounds(int64(len(values)), start, stop)
	if !ok {
		return []string{}, nil
	}
	return append([]string{}, values[lo:hi]...), nil
}

func (m *Memory) ListTrim(ctx context.Context, list string, start, stop int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	values := m.lists[list]
	lo, hi, ok := bounds(int64(len(values)), start, stop)
	if !ok {
		delete(m.lists, list)
		return nil
	}
	m.lists[list] = append([]string{}, values[lo:hi]...)
	return nil
}
