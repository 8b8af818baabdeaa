package service

import (
	"context"
	"hash/fnv"

	"golang.org/x/sync/semaphore"
)

const defaultLockStripes = 64

// keyLocks serializes work per subscription key. Keys hash onto a fixed
// number of stripes, so two keys may share a lock but one key never has two.
type keyLocks struct {
	stripes []*semaphore.Weighted
}

func newKeyLocks(n int) *keyLocks {
	if n < 1 {
		n = 1
	}
	stripes := make([]*semaphore.Weighted, n)
	for i := range stripes {
		stripes[i] = semaphore.NewWeighted(1)
	}
	return &keyLocks{stripes: stripes}
}

// Lock blocks until key's stripe is free or ctx ends. The returned func
// releases the stripe.
func (l *keyLocks) Lock(ctx context.Context, key string) (func(), error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	sem := l.stripes[h.Sum32()%uint32(len(l.stripes))]

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { sem.Release(1) }, nil
}
