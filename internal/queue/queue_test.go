package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/nursery-speaker/internal/domain/nursery"
)

// command builds a distinguishable command for queue tests.
func command(seconds int64) nursery.Command {
	return nursery.Command{
		Kind:      nursery.KindSong,
		CreatedAt: time.Unix(seconds, 0),
	}
}

// TestQueue_FIFO verifies that commands come out in enqueue order.
func TestQueue_FIFO(t *testing.T) {
	t.Parallel()

	q := New(4)

	for i := range int64(3) {
		_, dropped := q.Push(command(i))
		require.False(t, dropped)
	}

	require.Equal(t, 3, q.Len())

	for i := range int64(3) {
		cmd, ok := q.TryPop()
		require.True(t, ok)
		require.Equal(t, time.Unix(i, 0), cmd.CreatedAt)
	}

	_, ok := q.TryPop()
	require.False(t, ok)
}

// TestQueue_EvictsOldestWhenFull verifies the bound and the drop-oldest policy.
func TestQueue_EvictsOldestWhenFull(t *testing.T) {
	t.Parallel()

	q := New(2)
	require.Equal(t, 2, q.Cap())

	q.Push(command(1))
	q.Push(command(2))

	evicted, dropped := q.Push(command(3))
	require.True(t, dropped)
	require.Equal(t, time.Unix(1, 0), evicted.CreatedAt)
	require.Equal(t, 2, q.Len())

	first, _ := q.TryPop()
	second, _ := q.TryPop()
	require.Equal(t, time.Unix(2, 0), first.CreatedAt)
	require.Equal(t, time.Unix(3, 0), second.CreatedAt)
}

// TestQueue_DefaultCapacity verifies the fallback bound.
func TestQueue_DefaultCapacity(t *testing.T) {
	t.Parallel()

	require.Equal(t, DefaultCapacity, New(0).Cap())
}

// TestQueue_ConcurrentProducerConsumer exercises the single-producer/single-consumer contract.
func TestQueue_ConcurrentProducerConsumer(t *testing.T) {
	t.Parallel()

	const total = 1000

	q := New(total)

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		for i := range int64(total) {
			q.Push(command(i))
		}
	}()

	received := make([]int64, 0, total)
	for len(received) < total {
		if cmd, ok := q.TryPop(); ok {
			received = append(received, cmd.CreatedAt.Unix())
		}
	}

	wg.Wait()

	for i, v := range received {
		require.Equal(t, int64(i), v)
	}
}
