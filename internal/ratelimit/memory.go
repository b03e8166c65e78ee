package ratelimit

import (
	"context"
	"sync"
	"time"
)

const purgeThreshold = 10000

type record struct {
	count     int
	expiresAt time.Time
}

// MemoryLimiter keeps per-key windows in process memory. Counts are not shared
// between processes.
type MemoryLimiter struct {
	mu      sync.Mutex
	records map[string]*record
	clock   func() time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

func NewMemoryLimiter(clock func() time.Time) *MemoryLimiter {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryLimiter{records: make(map[string]*record), clock: clock}
}

func (l *MemoryLimiter) Admit(_ context.Context, key string, limit int, window time.Duration) bool {
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.records) > purgeThreshold {
		for candidate, entry := range l.records {
			if now.After(entry.expiresAt) {
				delete(l.records, candidate)
			}
		}
	}

	entry, ok := l.records[key]
	if !ok || now.After(entry.expiresAt) {
		l.records[key] = &record{count: 1, expiresAt: now.Add(window)}
		return true
	}
	if entry.count >= limit {
		return false
	}
	entry.count++
	return true
}

// Len reports how many keys are currently tracked.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
