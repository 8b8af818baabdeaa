package service

import (
	"sync"

	"mpesa-callback-relay/internal/core/domain"
)

// fakeConn records envelopes sent to it.
type fakeConn struct {
	id string

	mu     sync.Mutex
	got    []*domain.Envelope
	err    error
	closed bool
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) SessionID() string { return c.id }

func (c *fakeConn) Send(env *domain.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.got = append(c.got, env)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) failWith(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func (c *fakeConn) envelopes() []*domain.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*domain.Envelope(nil), c.got...)
}

func (c *fakeConn) payloads() []string {
	var out []string
	for _, e := range c.envelopes() {
		out = append(out, string(e.Data))
	}
	return out
}
