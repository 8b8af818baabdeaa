package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"mpesa-callback-relay/internal/core/domain"
	"mpesa-callback-relay/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dispatchFor(id int64, key string) domain.Dispatch {
	return domain.Dispatch{
		RecordID: id,
		Key:      key,
		Envelope: domain.NewTransactionEnvelope(domain.RawPayload(fmt.Sprintf(`{"n":%d}`, id))),
	}
}

func TestDispatchPool_DeliversToRoomOnly(t *testing.T) {
	reg := NewSessionRegistry(nil, zerolog.Nop())
	a, b := newFakeConn("a"), newFakeConn("b")
	reg.Connect(a)
	reg.Connect(b)
	_, _ = reg.Join("a", []string{"shop-a"})

	pool := NewDispatchPool(reg, 4, 16, nil, zerolog.Nop())
	pool.Start()

	require.NoError(t, pool.Submit(dispatchFor(1, "shop-a")))
	require.NoError(t, pool.Shutdown(context.Background()))

	assert.Equal(t, []string{`{"n":1}`}, a.payloads())
	assert.Empty(t, b.envelopes())
}

func TestDispatchPool_Broadcast(t *testing.T) {
	reg := NewSessionRegistry(nil, zerolog.Nop())
	a, b := newFakeConn("a"), newFakeConn("b")
	reg.Connect(a)
	reg.Connect(b)
	_, _ = reg.Join("a", []string{"shop-a"})

	pool := NewDispatchPool(reg, 2, 16, nil, zerolog.Nop())
	pool.Start()

	d := dispatchFor(7, "")
	d.Broadcast = true
	require.NoError(t, pool.Submit(d))
	require.NoError(t, pool.Shutdown(context.Background()))

	assert.Len(t, a.envelopes(), 1)
	assert.Len(t, b.envelopes(), 1)
}

func TestDispatchPool_PreservesPerKeyOrder(t *testing.T) {
	reg := NewSessionRegistry(nil, zerolog.Nop())
	conns := map[string]*fakeConn{}
	for _, k := range []string{"k1", "k2", "k3"} {
		c := newFakeConn("s-" + k)
		conns[k] = c
		reg.Connect(c)
		_, _ = reg.Join(c.id, []string{k})
	}

	pool := NewDispatchPool(reg, 3, 512, nil, zerolog.Nop())
	pool.Start()

	for i := int64(0); i < 300; i++ {
		key := fmt.Sprintf("k%d", i%3+1)
		require.NoError(t, pool.Submit(dispatchFor(i, key)))
	}
	require.NoError(t, pool.Shutdown(context.Background()))

	for k, c := range conns {
		got := c.payloads()
		require.Len(t, got, 100, k)
		var last int64 = -1
		for _, p := range got {
			var v struct{ N int64 }
			require.NoError(t, json.Unmarshal([]byte(p), &v))
			assert.Greater(t, v.N, last, "key %s out of order", k)
			last = v.N
		}
	}
}

func TestDispatchPool_QueueFullDrops(t *testing.T) {
	reg := NewSessionRegistry(nil, zerolog.Nop())
	m := metrics.New(prometheus.NewRegistry())

	// not started: nothing drains the shard
	pool := NewDispatchPool(reg, 1, 2, m, zerolog.Nop())

	require.NoError(t, pool.Submit(dispatchFor(1, "k")))
	require.NoError(t, pool.Submit(dispatchFor(2, "k")))
	assert.ErrorIs(t, pool.Submit(dispatchFor(3, "k")), domain.ErrQueueFull)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DispatchQueued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DispatchDropped.WithLabelValues("queue_full")))
}

func TestDispatchPool_SubmitAfterShutdown(t *testing.T) {
	pool := NewDispatchPool(NewSessionRegistry(nil, zerolog.Nop()), 2, 4, nil, zerolog.Nop())
	pool.Start()
	require.NoError(t, pool.Shutdown(context.Background()))

	assert.ErrorIs(t, pool.Submit(dispatchFor(1, "k")), domain.ErrPoolClosed)
	// idempotent
	assert.NoError(t, pool.Shutdown(context.Background()))
}

func TestDispatchPool_ShutdownHonoursDeadline(t *testing.T) {
	reg := NewSessionRegistry(nil, zerolog.Nop())
	slow := &blockingConn{fakeConn: newFakeConn("slow"), release: make(chan struct{})}
	reg.Connect(slow)
	_, _ = reg.Join("slow", []string{"k"})

	pool := NewDispatchPool(reg, 1, 4, nil, zerolog.Nop())
	pool.Start()
	require.NoError(t, pool.Submit(dispatchFor(1, "k")))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.Shutdown(ctx), context.DeadlineExceeded)

	close(slow.release)
	assert.NoError(t, pool.Shutdown(context.Background()))
}

func TestDispatchPool_FailedSendDoesNotBlockOthers(t *testing.T) {
	reg := NewSessionRegistry(nil, zerolog.Nop())
	m := metrics.New(prometheus.NewRegistry())
	bad, good := newFakeConn("bad"), newFakeConn("good")
	bad.failWith(domain.ErrSendBufferFull)
	reg.Connect(bad)
	reg.Connect(good)
	_, _ = reg.Join("bad", []string{"k"})
	_, _ = reg.Join("good", []string{"k"})

	pool := NewDispatchPool(reg, 1, 4, m, zerolog.Nop())
	pool.Start()
	require.NoError(t, pool.Submit(dispatchFor(1, "k")))
	require.NoError(t, pool.Shutdown(context.Background()))

	assert.Len(t, good.envelopes(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeliveriesTotal.WithLabelValues(metrics.DeliveryFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DeliveriesTotal.WithLabelValues(metrics.DeliveryDelivered)))
}

func TestDispatchPool_ShardForIsStable(t *testing.T) {
	pool := NewDispatchPool(NewSessionRegistry(nil, zerolog.Nop()), 8, 1, nil, zerolog.Nop())
	for _, k := range []string{"", "5710325", "shop-a"} {
		first := pool.shardFor(k)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, pool.shardFor(k))
		}
		assert.Less(t, first, 8)
	}
}

// blockingConn holds Send until release is closed.
type blockingConn struct {
	*fakeConn
	release chan struct{}
}

func (c *blockingConn) Send(env *domain.Envelope) error {
	<-c.release
	return c.fakeConn.Send(env)
}
