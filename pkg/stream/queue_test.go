package stream

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_PushThenNext(t *testing.T) {
	q := NewQueue("s1")

	q.Push(Event{Name: EventMessage, Data: map[string]any{"id": "m1"}})

	ev, err := q.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EventMessage, ev.Name)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_PreservesPushOrder(t *testing.T) {
	q := NewQueue("s1")

	for i := 0; i < 100; i++ {
		q.Push(Event{Name: EventAssistantChunk, Data: i})
	}

	for i := 0; i < 100; i++ {
		ev, err := q.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i, ev.Data)
	}
}

func TestQueue_NextBlocksUntilPush(t *testing.T) {
	q := NewQueue("s1")

	got := make(chan Event, 1)
	go func() {
		ev, err := q.Next(context.Background())
		if err == nil {
			got <- ev
		}
	}()

	// Consumer should be blocked
	select {
	case <-got:
		t.Fatal("Next returned before any push")
	case <-time.After(50 * time.Millisecond):
	}

	q.Push(Event{Name: EventHTTPExchange})

	select {
	case ev := <-got:
		assert.Equal(t, EventHTTPExchange, ev.Name)
	case <-time.After(time.Second):
		t.Fatal("Next did not wake after push")
	}
}

func TestQueue_NextHonoursContextCancel(t *testing.T) {
	q := NewQueue("s1")

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := q.Next(ctx)
		done <- err
	}()

	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Next did not return after cancel")
	}
}

func TestQueue_ConcurrentProducersNoLoss(t *testing.T) {
	q := NewQueue("s1")

	const producers = 8
	const perProducer = 50

	for p := 0; p < producers; p++ {
		go func(p int) {
			for i := 0; i < perProducer; i++ {
				q.Push(Event{Name: EventMessage, Data: fmt.Sprintf("%d-%d", p, i)})
			}
		}(p)
	}

	seen := make(map[string]bool)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for len(seen) < producers*perProducer {
		ev, err := q.Next(ctx)
		require.NoError(t, err)
		key := ev.Data.(string)
		assert.False(t, seen[key], "event %s delivered twice", key)
		seen[key] = true
	}
}

func TestQueue_IndependentSessions(t *testing.T) {
	qa := NewQueue("session-a")
	qb := NewQueue("session-b")

	qa.Push(Event{Name: EventMessage, Data: "only-a"})

	assert.Equal(t, 1, qa.Len())
	assert.Equal(t, 0, qb.Len())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := qb.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
