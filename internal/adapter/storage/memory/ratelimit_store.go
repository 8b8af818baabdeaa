package memory

import (
	"context"
	"sync"
	"time"

	"mpesa-callback-relay/internal/core/ports"
)

// RateLimitStore implements ports.RateLimitStore with per-process counters.
// It is used when Redis is disabled.
type RateLimitStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	id    int64
	secs  int64
	count int64
}

func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Allow uses the same fixed-window arithmetic as the Redis store.
func (s *RateLimitStore) Allow(_ context.Context, key string, limit int64, win time.Duration) (*ports.RateLimitResult, error) {
	secs := int64(win.Seconds())
	if secs < 1 {
		secs = 1
	}
	now := s.now().Unix()
	windowID := now / secs

	s.mu.Lock()
	w, ok := s.windows[key]
	if !ok || w.id != windowID || w.secs != secs {
		w = &window{id: windowID, secs: secs}
		s.windows[key] = w
		s.sweep(now)
	}
	w.count++
	count := w.count
	s.mu.Unlock()

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return &ports.RateLimitResult{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   (windowID + 1) * secs,
	}, nil
}

// sweep drops counters whose own window has closed. Caller holds mu.
func (s *RateLimitStore) sweep(now int64) {
	for k, w := range s.windows {
		if w.id < now/w.secs {
			delete(s.windows, k)
		}
	}
}
