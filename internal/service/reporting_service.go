package service

import (
	"context"
	"fmt"

	"mpesa-callback-relay/internal/core/domain"
	"mpesa-callback-relay/internal/core/ports"
	"mpesa-callback-relay/pkg/apperror"

	"github.com/rs/zerolog"
)

type reportingService struct {
	store ports.CallbackStore
	log   zerolog.Logger
}

// NewReportingService creates a new reporting service.
func NewReportingService(store ports.CallbackStore, log zerolog.Logger) ports.ReportingService {
	return &reportingService{store: store, log: log}
}

// RecentTransactions projects the newest callbacks into table rows.
// limit is clamped to [1, domain.MaxTransactionLimit].
func (s *reportingService) RecentTransactions(ctx context.Context, limit int) ([]domain.TransactionView, error) {
	limit = ClampTransactionLimit(limit)

	records, err := s.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list recent callbacks: %w", err))
	}

	views := make([]domain.TransactionView, 0, len(records))
	for i := range records {
		rec := &records[i]
		payload, err := domain.DecodePayload(rec.Kind, rec.Payload)
		if err != nil {
			s.log.Warn().Err(err).Int64("record_id", rec.ID).Msg("stored callback does not decode")
			views = append(views, domain.NewTransactionView(rec, domain.TransactionFields{
				Status: domain.TransactionStatusUnknown,
			}))
			continue
		}
		views = append(views, domain.NewTransactionView(rec, payload.Transaction()))
	}
	return views, nil
}

// ClampTransactionLimit bounds a requested row count.
func ClampTransactionLimit(limit int) int {
	switch {
	case limit < 1:
		return 1
	case limit > domain.MaxTransactionLimit:
		return domain.MaxTransactionLimit
	default:
		return limit
	}
}
