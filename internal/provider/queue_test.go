package provider

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestQueue_SpacesDispatches(t *testing.T) {
	q := NewRequestQueue(20) // one dispatch per 50ms
	defer q.Close()

	ctx := context.Background()
	var stamps []time.Time
	for i := 0; i < 3; i++ {
		_, err := q.Enqueue(ctx, func(ctx context.Context) (*Response, error) {
			stamps = append(stamps, time.Now())
			return &Response{}, nil
		})
		require.NoError(t, err)
	}

	require.Len(t, stamps, 3)
	for i := 1; i < len(stamps); i++ {
		assert.GreaterOrEqual(t, stamps[i].Sub(stamps[i-1]), 40*time.Millisecond)
	}
}

func TestRequestQueue_OneAtATime(t *testing.T) {
	q := NewRequestQueue(1000)
	defer q.Close()

	var inFlight, maxInFlight int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Enqueue(context.Background(), func(ctx context.Context) (*Response, error) {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					m := atomic.LoadInt32(&maxInFlight)
					if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return &Response{}, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight)
}

func TestRequestQueue_FailureOnlyFailsItsCaller(t *testing.T) {
	q := NewRequestQueue(1000)
	defer q.Close()

	boom := errors.New("boom")
	ctx := context.Background()

	_, err := q.Enqueue(ctx, func(ctx context.Context) (*Response, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	resp, err := q.Enqueue(ctx, func(ctx context.Context) (*Response, error) {
		return &Response{Status: 200}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
}

func TestRequestQueue_SetRate(t *testing.T) {
	q := NewRequestQueue(0)
	defer q.Close()
	assert.Equal(t, DefaultRate, q.Rate())

	q.SetRate(10)
	assert.Equal(t, 10, q.Rate())

	q.SetRate(0)
	q.SetRate(-5)
	assert.Equal(t, 10, q.Rate())
}

func TestRequestQueue_CancelledContextSkipsOperation(t *testing.T) {
	q := NewRequestQueue(1000)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	_, err := q.Enqueue(ctx, func(ctx context.Context) (*Response, error) {
		ran = true
		return &Response{}, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ran)
}

func TestRequestQueue_EnqueueAfterClose(t *testing.T) {
	q := NewRequestQueue(1000)
	q.Close()

	_, err := q.Enqueue(context.Background(), func(ctx context.Context) (*Response, error) {
		return &Response{}, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
