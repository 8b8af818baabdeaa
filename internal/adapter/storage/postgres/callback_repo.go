package postgres

import (
	"context"
	"fmt"
	"time"

	"mpesa-callback-relay/internal/core/domain"

	"github.com/bwmarrin/snowflake"
	"golang.org/x/sync/semaphore"
)

const callbackSchema = `
CREATE TABLE IF NOT EXISTS callbacks (
	id               BIGINT PRIMARY KEY,
	subscription_key TEXT NOT NULL DEFAULT '',
	kind             TEXT NOT NULL,
	payload          JSONB NOT NULL,
	received_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_callbacks_subscription_key ON callbacks (subscription_key, id DESC)`

// CallbackRepo implements ports.CallbackStore on the callbacks table.
type CallbackRepo struct {
	pool  Pool
	node  *snowflake.Node
	write *semaphore.Weighted
	now   func() time.Time
}

// NewCallbackRepo creates a CallbackRepo issuing record ids from node.
func NewCallbackRepo(pool Pool, node *snowflake.Node) *CallbackRepo {
	return &CallbackRepo{
		pool:  pool,
		node:  node,
		write: semaphore.NewWeighted(1),
		now:   time.Now,
	}
}

// EnsureSchema creates the callbacks table if it does not exist.
func (r *CallbackRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, callbackSchema); err != nil {
		return fmt.Errorf("ensure callbacks schema: %w", err)
	}
	return nil
}

// Append inserts one record. Inserts are serialized through the write lock
// and the id is taken while holding it, so id order is commit order.
func (r *CallbackRepo) Append(ctx context.Context, kind domain.CallbackKind, key string, payload domain.RawPayload) (*domain.CallbackRecord, error) {
	if err := r.write.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire write lock: %w", err)
	}
	defer r.write.Release(1)

	rec := &domain.CallbackRecord{
		ID:              r.node.Generate().Int64(),
		SubscriptionKey: key,
		Kind:            kind,
		Payload:         payload,
		// postgres keeps microseconds
		ReceivedAt: r.now().UTC().Truncate(time.Microsecond),
	}

	query := `INSERT INTO callbacks (id, subscription_key, kind, payload, received_at)
		VALUES ($1, $2, $3, $4, $5)`

	// []byte goes to the jsonb codec as raw JSON text
	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.SubscriptionKey, string(rec.Kind), []byte(rec.Payload), rec.ReceivedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert callback: %w", err)
	}
	return rec, nil
}

// ListRecent returns up to limit records, newest first.
func (r *CallbackRepo) ListRecent(ctx context.Context, limit int) ([]domain.CallbackRecord, error) {
	if limit <= 0 {
		return []domain.CallbackRecord{}, nil
	}

	query := `SELECT id, subscription_key, kind, payload, received_at
		FROM callbacks ORDER BY id DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list callbacks: %w", err)
	}
	defer rows.Close()

	records := make([]domain.CallbackRecord, 0, limit)
	for rows.Next() {
		var (
			rec     domain.CallbackRecord
			kind    string
			payload []byte
		)
		if err := rows.Scan(&rec.ID, &rec.SubscriptionKey, &kind, &payload, &rec.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan callback: %w", err)
		}
		rec.Kind = domain.CallbackKind(kind)
		rec.Payload = domain.RawPayload(payload)
		rec.ReceivedAt = rec.ReceivedAt.UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate callbacks: %w", err)
	}
	return records, nil
}
