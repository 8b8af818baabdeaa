package service

import (
	"context"
	"errors"
	"time"

	"mpesa-callback-relay/internal/core/domain"
	"mpesa-callback-relay/internal/core/ports"
	"mpesa-callback-relay/internal/metrics"
	"mpesa-callback-relay/pkg/apperror"

	"github.com/rs/zerolog"
)

// IngestServiceImpl implements ports.IngestService.
type IngestServiceImpl struct {
	store        ports.CallbackStore
	router       ports.NotificationRouter
	locks        *keyLocks
	writeTimeout time.Duration
	metrics      *metrics.Metrics
	log          zerolog.Logger
}

// NewIngestService creates an ingest service. writeTimeout bounds the wait
// for the key lock plus the store write.
func NewIngestService(
	store ports.CallbackStore,
	router ports.NotificationRouter,
	writeTimeout time.Duration,
	m *metrics.Metrics,
	log zerolog.Logger,
) *IngestServiceImpl {
	return &IngestServiceImpl{
		store:        store,
		router:       router,
		locks:        newKeyLocks(defaultLockStripes),
		writeTimeout: writeTimeout,
		metrics:      m,
		log:          log,
	}
}

// Ingest decodes a callback body, appends it to the log and queues its
// notification. Append and queueing happen under the key's lock, so two
// callbacks for one key reach the dispatch shard in append order.
func (s *IngestServiceImpl) Ingest(ctx context.Context, kind domain.CallbackKind, body []byte) (*domain.CallbackRecord, error) {
	payload, err := domain.DecodePayload(kind, body)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownKind) {
			return nil, apperror.ErrUnknownCallbackKind(string(kind))
		}
		s.metrics.Callback(string(kind), metrics.OutcomeMalformed)
		s.log.Warn().Err(err).Str("kind", string(kind)).Int("bytes", len(body)).Msg("rejected malformed callback")
		return nil, apperror.ErrMalformedCallback(err)
	}

	key, _ := payload.SubscriptionKey()

	wctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()

	unlock, err := s.locks.Lock(wctx, key)
	if err != nil {
		return nil, s.persistError(kind, key, err)
	}
	defer unlock()

	start := time.Now()
	rec, err := s.store.Append(wctx, kind, key, payload.Raw())
	s.metrics.ObserveStoreWrite(time.Since(start))
	if err != nil {
		return nil, s.persistError(kind, key, err)
	}

	if err := s.router.Publish(rec); err != nil {
		// stored; the live push is best effort
		s.log.Warn().Err(err).Int64("record_id", rec.ID).Str("key", key).Msg("notification not queued")
	}

	s.metrics.Callback(string(kind), metrics.OutcomeAccepted)
	s.log.Info().
		Int64("record_id", rec.ID).
		Str("kind", string(kind)).
		Str("key", key).
		Msg("callback stored")

	return rec, nil
}

func (s *IngestServiceImpl) persistError(kind domain.CallbackKind, key string, err error) error {
	s.metrics.Callback(string(kind), metrics.OutcomeFailed)
	s.log.Error().Err(err).Str("kind", string(kind)).Str("key", key).Msg("failed to store callback")
	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.ErrWriteTimeout(err)
	}
	return apperror.ErrPersistenceFailure(err)
}
