// AngelaMos | 2026
// memory.go

package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is a bounded in-process cache. Least recently used entries are
// evicted once size is reached; expired entries are dropped on read.
type Memory struct {
	entries *lru.Cache[string, memoryEntry]
	now     func() time.Time
}

func NewMemory(size int) (*Memory, error) {
	if size <= 0 {
		size = 1024
	}
	entries, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Memory{entries: entries, now: time.Now}, nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := m.entries.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		m.entries.Remove(key)
		return nil, ErrMiss
	}
	return e.value, nil
}

func (m *Memory) Set(
	_ context.Context,
	key string,
	value []byte,
	ttl time.Duration,
) error {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.entries.Add(key, e)
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		m.entries.Remove(k)
	}
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.entries.Purge()
	return nil
}

func (m *Memory) Len() int {
	return m.entries.Len()
}
