package worker

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate admits at most N concurrent holders. Waiters are admitted in FIFO
// order.
type Gate struct {
	sem      *semaphore.Weighted
	limit    int
	inFlight atomic.Int64
}

func NewGate(limit int) (*Gate, error) {
	if limit < 1 {
		return nil, fmt.Errorf("gate limit must be at least 1, got %d", limit)
	}
	return &Gate{sem: semaphore.NewWeighted(int64(limit)), limit: limit}, nil
}

// Acquire blocks until a slot is free or ctx ends.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.inFlight.Add(1)
	return nil
}

func (g *Gate) Release() {
	g.inFlight.Add(-1)
	g.sem.Release(1)
}

func (g *Gate) InFlight() int {
	return int(g.inFlight.Load())
}

func (g *Gate) Limit() int {
	return g.limit
}
