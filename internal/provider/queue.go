// Package provider provides the rate-limited request queue.
//
// INVARIANTS:
// - Operations run in FIFO order, one at a time
// - Consecutive dispatches are at least floor(1000/rate) ms apart
// - SetRate affects the next dispatch decision only; non-positive rates are ignored
// - A failing operation only fails its own caller; the drain loop keeps going
package provider

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultRate is the default requests-per-second ceiling.
const DefaultRate = 3

// Operation is one queued remote call.
type Operation func(ctx context.Context) (*Response, error)

type job struct {
	ctx  context.Context
	op   Operation
	done chan result
}

type result struct {
	resp *Response
	err  error
}

// RequestQueue serializes remote calls under a requests-per-second ceiling.
// Construct one per process and share it across API clients.
type RequestQueue struct {
	limiter *rate.Limiter
	jobs    chan *job
	quit    chan struct{}
	start   sync.Once
	stop    sync.Once
	mu      sync.RWMutex
	rps     int
}

// NewRequestQueue creates a queue limited to rps requests per second.
// A non-positive rps falls back to DefaultRate.
func NewRequestQueue(rps int) *RequestQueue {
	if rps <= 0 {
		rps = DefaultRate
	}
	return &RequestQueue{
		limiter: rate.NewLimiter(intervalLimit(rps), 1),
		jobs:    make(chan *job),
		quit:    make(chan struct{}),
		rps:     rps,
	}
}

func intervalLimit(rps int) rate.Limit {
	interval := time.Duration(1000/rps) * time.Millisecond
	if interval <= 0 {
		return rate.Inf
	}
	return rate.Every(interval)
}

// SetRate changes the ceiling. Non-positive values are ignored.
func (q *RequestQueue) SetRate(rps int) {
	if rps <= 0 {
		return
	}
	q.mu.Lock()
	q.rps = rps
	q.mu.Unlock()
	q.limiter.SetLimit(intervalLimit(rps))
}

// Rate returns the current requests-per-second ceiling.
func (q *RequestQueue) Rate() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.rps
}

// Enqueue appends op to the queue and blocks until it has run.
// If ctx ends while op is still waiting, ctx.Err() is returned and op never runs.
func (q *RequestQueue) Enqueue(ctx context.Context, op Operation) (*Response, error) {
	q.start.Do(func() { go q.drain() })

	j := &job{ctx: ctx, op: op, done: make(chan result, 1)}
	select {
	case q.jobs <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.quit:
		return nil, context.Canceled
	}

	r := <-j.done
	return r.resp, r.err
}

// Close stops the drain loop. Enqueue after Close fails with context.Canceled.
func (q *RequestQueue) Close() {
	q.stop.Do(func() { close(q.quit) })
}

func (q *RequestQueue) drain() {
	for {
		select {
		case <-q.quit:
			return
		case j := <-q.jobs:
			select {
			case <-q.quit:
				j.done <- result{err: context.Canceled}
				return
			default:
			}
			if err := q.limiter.Wait(j.ctx); err != nil {
				j.done <- result{err: err}
				continue
			}
			resp, err := j.op(j.ctx)
			j.done <- result{resp: resp, err: err}
		}
	}
}
