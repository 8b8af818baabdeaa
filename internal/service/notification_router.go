package service

import (
	"fmt"

	"mpesa-callback-relay/internal/core/domain"
	"mpesa-callback-relay/internal/core/ports"
	"mpesa-callback-relay/internal/metrics"

	"github.com/rs/zerolog"
)

// UnresolvedPolicy says what happens to a callback with no subscription key.
type UnresolvedPolicy string

const (
	// UnresolvedBroadcast sends the callback to every connected session.
	UnresolvedBroadcast UnresolvedPolicy = "broadcast"
	// UnresolvedDrop stores the callback but notifies nobody.
	UnresolvedDrop UnresolvedPolicy = "drop"
)

// ParseUnresolvedPolicy validates a configured policy name.
func ParseUnresolvedPolicy(s string) (UnresolvedPolicy, error) {
	switch p := UnresolvedPolicy(s); p {
	case UnresolvedBroadcast, UnresolvedDrop:
		return p, nil
	default:
		return "", fmt.Errorf("unknown unresolved policy %q", s)
	}
}

type notificationRouter struct {
	dispatcher ports.Dispatcher
	policy     UnresolvedPolicy
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

// NewNotificationRouter creates a router that hands deliveries to dispatcher.
func NewNotificationRouter(dispatcher ports.Dispatcher, policy UnresolvedPolicy, m *metrics.Metrics, log zerolog.Logger) ports.NotificationRouter {
	return &notificationRouter{
		dispatcher: dispatcher,
		policy:     policy,
		metrics:    m,
		log:        log,
	}
}

// Publish builds the transaction envelope for rec and queues it for the
// sessions in rec's room. Queue errors are returned for logging only; the
// record is already stored.
func (r *notificationRouter) Publish(rec *domain.CallbackRecord) error {
	d := domain.Dispatch{
		RecordID: rec.ID,
		Key:      rec.SubscriptionKey,
		Envelope: domain.NewTransactionEnvelope(rec.Payload),
	}

	if !rec.Resolved() {
		r.metrics.Unresolved(string(r.policy))
		if r.policy == UnresolvedDrop {
			r.log.Warn().
				Int64("record_id", rec.ID).
				Str("kind", string(rec.Kind)).
				Msg("callback has no subscription key, not notifying")
			return nil
		}
		r.log.Info().
			Int64("record_id", rec.ID).
			Str("kind", string(rec.Kind)).
			Msg("callback has no subscription key, broadcasting")
		d.Broadcast = true
	}

	if err := r.dispatcher.Submit(d); err != nil {
		return fmt.Errorf("submit dispatch: %w", err)
	}
	return nil
}
