package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFDQueue_DrainFeed(t *testing.T) {
	q := NewFDQueue[int](10)
	require.NoError(t, q.Drain(1, 2))
	require.NoError(t, q.Drain(3))
	assert.Equal(t, 3, q.Size())

	recs, err := q.Feed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, recs)
	assert.Equal(t, 0, q.Size())
}

func TestFDQueue_FeedWaits(t *testing.T) {
	q := NewFDQueue[string](10)
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = q.Drain("late")
	}()
	recs, err := q.Feed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"late"}, recs)
}

func TestFDQueue_FeedHonorsContext(t *testing.T) {
	q := NewFDQueue[int](10)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := q.Feed(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFDQueue_Overflow(t *testing.T) {
	q := NewFDQueue[int](2)
	require.NoError(t, q.Drain(1, 2))
	assert.ErrorIs(t, q.Drain(3), ErrOverflow)
	assert.ErrorIs(t, q.Drain(4), ErrOverflow)

	// the overflow is reported once, then the queue is usable again
	_, err := q.Feed(context.Background())
	assert.ErrorIs(t, err, ErrOverflow)
	require.NoError(t, q.Drain(5))
	recs, err := q.Feed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{5}, recs)
}

func TestFDQueue_Close(t *testing.T) {
	q := NewFDQueue[int](10)
	require.NoError(t, q.Drain(1))
	require.NoError(t, q.Close())

	assert.ErrorIs(t, q.Drain(2), ErrClosed)
	_, err := q.Feed(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFDQueue_CloseWakesFeeder(t *testing.T) {
	q := NewFDQueue[int](10)
	done := make(chan error, 1)
	go func() {
		_, err := q.Feed(context.Background())
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	_ = q.Close()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("Feed did not wake on Close")
	}
}
