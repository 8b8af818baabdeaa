package service

import (
	"context"
	"hash/fnv"
	"sync"

	"mpesa-callback-relay/internal/core/domain"
	"mpesa-callback-relay/internal/core/ports"
	"mpesa-callback-relay/internal/metrics"

	"github.com/rs/zerolog"
)

// DispatchPool implements ports.Dispatcher with a fixed set of worker
// shards. A shard key always maps to the same shard and each shard is a
// FIFO channel drained by one goroutine, so deliveries for one key keep
// their submit order.
type DispatchPool struct {
	registry ports.SessionRegistry
	shards   []chan domain.Dispatch

	mu      sync.RWMutex
	closed  bool
	started sync.Once
	wg      sync.WaitGroup

	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewDispatchPool creates a pool with workers shards of queueSize slots.
func NewDispatchPool(registry ports.SessionRegistry, workers, queueSize int, m *metrics.Metrics, log zerolog.Logger) *DispatchPool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	shards := make([]chan domain.Dispatch, workers)
	for i := range shards {
		shards[i] = make(chan domain.Dispatch, queueSize)
	}
	return &DispatchPool{
		registry: registry,
		shards:   shards,
		metrics:  m,
		log:      log,
	}
}

// Start launches one worker per shard. Calling it again is a no-op.
func (p *DispatchPool) Start() {
	p.started.Do(func() {
		for i, ch := range p.shards {
			p.wg.Add(1)
			go p.run(i, ch)
		}
		p.log.Info().Int("workers", len(p.shards)).Msg("dispatch pool started")
	})
}

// Submit queues d on its shard without blocking.
func (p *DispatchPool) Submit(d domain.Dispatch) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.metrics.Dropped("closed")
		return domain.ErrPoolClosed
	}

	shard := p.shardFor(d.ShardKey())
	select {
	case p.shards[shard] <- d:
		p.metrics.Queued()
		return nil
	default:
		p.metrics.Dropped("queue_full")
		p.log.Warn().
			Int64("record_id", d.RecordID).
			Str("key", d.Key).
			Int("shard", shard).
			Msg("dispatch shard full, dropping notification")
		return domain.ErrQueueFull
	}
}

// Shutdown stops accepting work and waits for queued deliveries to drain
// or for ctx to end.
func (p *DispatchPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		for _, ch := range p.shards {
			close(ch)
		}
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.log.Info().Msg("dispatch pool drained")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *DispatchPool) shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(p.shards)))
}

func (p *DispatchPool) run(shard int, ch <-chan domain.Dispatch) {
	defer p.wg.Done()
	for d := range ch {
		p.deliver(shard, d)
	}
}

func (p *DispatchPool) deliver(shard int, d domain.Dispatch) {
	var targets []ports.SessionConn
	if d.Broadcast {
		targets = p.registry.All()
	} else {
		targets = p.registry.Members(d.Key)
	}

	if len(targets) == 0 {
		p.log.Debug().Int64("record_id", d.RecordID).Str("key", d.Key).Msg("no sessions subscribed")
		return
	}

	delivered := 0
	for _, conn := range targets {
		if err := conn.Send(d.Envelope); err != nil {
			p.metrics.Delivery(metrics.DeliveryFailed)
			p.log.Warn().Err(err).
				Int64("record_id", d.RecordID).
				Str("session_id", conn.SessionID()).
				Msg("notification delivery failed")
			continue
		}
		p.metrics.Delivery(metrics.DeliveryDelivered)
		delivered++
	}

	p.log.Debug().
		Int64("record_id", d.RecordID).
		Str("key", d.Key).
		Bool("broadcast", d.Broadcast).
		Int("shard", shard).
		Int("delivered", delivered).
		Int("targets", len(targets)).
		Msg("notification dispatched")
}
