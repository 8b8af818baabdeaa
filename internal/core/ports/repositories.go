package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"time"

	"mpesa-callback-relay/internal/core/domain"
)

// CallbackStore is the append-only callback log.
//
// Append assigns the record id and receive time. Ids grow with append
// order, so ListRecent returns the newest records first by id.
type CallbackStore interface {
	Append(ctx context.Context, kind domain.CallbackKind, key string, payload domain.RawPayload) (*domain.CallbackRecord, error)
	ListRecent(ctx context.Context, limit int) ([]domain.CallbackRecord, error)
}

// RateLimitStore counts requests per key in fixed windows.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}
