package apt

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueue_SrcPublish(t *testing.T) {
	q := New()
	q.SrcPublish(7)
	require.Equal(t, 1, q.Len())
}

func TestQueue_EnqueueOrderPreserved(t *testing.T) {
	q := New()
	q.SrcPublish(1)
	q.SrcPublish(2)
	require.Equal(t, 2, q.Len())

	first, err := q.q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), first.BuildID)
	second, err := q.q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), second.BuildID)
}
