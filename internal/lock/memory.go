package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLock is a single-process Locker with the same SET NX + TTL
// semantics as RedisLock, including token-checked release.
type MemoryLock struct {
	mu   sync.Mutex
	held map[string]hold
	now  func() time.Time
}

type hold struct {
	token   string
	expires time.Time
}

func NewMemoryLock() *MemoryLock {
	return &MemoryLock{
		held: make(map[string]hold),
		now:  time.Now,
	}
}

func (m *MemoryLock) Lock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if h, ok := m.held[key]; ok && now.Before(h.expires) {
		return "", false, nil
	}

	token := uuid.NewString()
	m.held[key] = hold{token: token, expires: now.Add(ttl)}

	return token, true, nil
}

func (m *MemoryLock) Unlock(_ context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.held[key]; ok && h.token == token {
		delete(m.held, key)
	}

	return nil
}
