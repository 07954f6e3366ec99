package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueue_EnqueueDequeueFIFOOrder(t *testing.T) {
	q := NewQueue[int](nil)
	q.Enqueue(1)
	q.Enqueue(2)
	q.Enqueue(3)
	require.Equal(t, 3, q.Len())

	ctx := context.Background()
	for _, want := range []int{1, 2, 3} {
		got, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	require.Equal(t, 0, q.Len())
}

func TestQueue_DequeueBlocksUntilEnqueue(t *testing.T) {
	q := NewQueue[string](nil)

	type result struct {
		item string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		item, err := q.Dequeue(context.Background())
		done <- result{item, err}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Enqueue("hello")

	select {
	case r := <-done:
		require.NoError(t, r.err)
		require.Equal(t, "hello", r.item)
	case <-time.After(2 * time.Second):
		t.Fatal("Dequeue did not return after Enqueue")
	}
}

func TestQueue_DequeueRespectsContextCancellation(t *testing.T) {
	q := NewQueue[int](nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Dequeue(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestTaskQueue_NilSentinel(t *testing.T) {
	q := NewTaskQueue()
	q.Enqueue(nil)

	task, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Nil(t, task)
}
