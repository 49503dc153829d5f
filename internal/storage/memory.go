package storage

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process object store used for local development and tests.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
	copies  []CopyCall
}

// CopyCall records one Copy invocation against a Memory store.
type CopyCall struct {
	Src string
	Dst string
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

// Put stores data under key.
func (m *Memory) Put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
}

// Get returns the object stored under key.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}

func (m *Memory) Copy(ctx context.Context, srcKey, dstKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.objects[srcKey]
	if !ok {
		return fmt.Errorf("copy %s: %w", srcKey, ErrObjectNotFound)
	}
	m.objects[dstKey] = append([]byte(nil), data...)
	m.copies = append(m.copies, CopyCall{Src: srcKey, Dst: dstKey})
	return nil
}

// Copies returns the successful copy calls in completion order.
func (m *Memory) Copies() []CopyCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CopyCall(nil), m.copies...)
}
