package utils

import (
	"context"
	"errors"
	"sync"
)

var ErrClosed = errors.New("[diary] feed/drain queue is closed")
var ErrOverflow = errors.New("[diary] feed/drain queue is overflowed")

// FDQueue is a bounded feed/drain queue of events. Drain never blocks: if a
// consumer falls behind and the queue fills up, the queue flips into the
// overflowed state, drops everything and reports ErrOverflow from both ends.
// The consumer is expected to treat ErrOverflow as "resync from scratch".
type FDQueue[T any] struct {
	limit int

	lock       sync.Mutex
	buf        []T
	closed     bool
	overflowed bool
	wake       chan struct{}
}

func NewFDQueue[T any](limit int) *FDQueue[T] {
	return &FDQueue[T]{
		limit: limit,
		wake:  make(chan struct{}, 1),
	}
}

func (q *FDQueue[T]) Close() error {
	q.lock.Lock()
	q.closed = true
	q.buf = nil
	q.lock.Unlock()
	q.signal()
	return nil
}

func (q *FDQueue[T]) Size() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.buf)
}

func (q *FDQueue[T]) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Drain appends recs to the queue. It never waits for the consumer.
func (q *FDQueue[T]) Drain(recs ...T) error {
	q.lock.Lock()
	if q.closed {
		q.lock.Unlock()
		return ErrClosed
	}
	if q.overflowed {
		q.lock.Unlock()
		return ErrOverflow
	}
	if len(q.buf)+len(recs) > q.limit {
		q.overflowed = true
		q.buf = nil
		q.lock.Unlock()
		q.signal()
		return ErrOverflow
	}
	q.buf = append(q.buf, recs...)
	q.lock.Unlock()
	q.signal()
	return nil
}

// Feed returns the accumulated batch, waiting until at least one record is
// available, the queue is closed, or ctx is done.
func (q *FDQueue[T]) Feed(ctx context.Context) ([]T, error) {
	for {
		q.lock.Lock()
		if q.overflowed {
			q.overflowed = false
			q.lock.Unlock()
			return nil, ErrOverflow
		}
		if len(q.buf) > 0 {
			recs := q.buf
			q.buf = nil
			q.lock.Unlock()
			return recs, nil
		}
		if q.closed {
			q.lock.Unlock()
			return nil, ErrClosed
		}
		q.lock.Unlock()

		select {
		case <-q.wake:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
