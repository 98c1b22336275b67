package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Dispatcher bounds how many chat requests one worker runs at a time
type Dispatcher struct {
	sem      *semaphore.Weighted
	capacity int64
	maxWait  time.Duration
	metrics  *Metrics
}

// NewDispatcher creates a dispatcher with capacity slots. Callers wait at most maxWait for a slot.
func NewDispatcher(capacity int, maxWait time.Duration, metrics *Metrics) *Dispatcher {
	if capacity < 1 {
		capacity = 1
	}
	return &Dispatcher{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
		maxWait:  maxWait,
		metrics:  metrics,
	}
}

// Acquire takes a slot. The returned release func must be called exactly once.
func (d *Dispatcher) Acquire(ctx context.Context) (func(), error) {
	waitCtx := ctx
	if d.maxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, d.maxWait)
		defer cancel()
	}

	if err := d.sem.Acquire(waitCtx, 1); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		return nil, newChatError(KindOverloaded, err, "no worker slot available within %s", d.maxWait)
	}

	d.metrics.IncInFlight()
	var once sync.Once
	return func() {
		once.Do(func() {
			d.metrics.DecInFlight()
			d.sem.Release(1)
		})
	}, nil
}

// Capacity returns the number of slots
func (d *Dispatcher) Capacity() int {
	return int(d.capacity)
}
