package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_DeliversToAllSinks(t *testing.T) {
	var mu sync.Mutex
	got := map[string][]string{}
	sink := func(name string) Publisher {
		return PublisherFunc(func(ctx context.Context, evt *MessageCreated) error {
			mu.Lock()
			defer mu.Unlock()
			got[name] = append(got[name], evt.MessageID)
			return nil
		})
	}

	d := NewDispatcher([]Publisher{sink("redis"), sink("kafka")}, 8, 2, time.Second)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, d.Publish(context.Background(), &MessageCreated{MessageID: id}))
	}
	d.Close()

	assert.ElementsMatch(t, []string{"a", "b", "c"}, got["redis"])
	assert.ElementsMatch(t, []string{"a", "b", "c"}, got["kafka"])
	assert.Zero(t, d.Dropped())
}

func TestDispatcher_FullQueueDoesNotBlock(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	var mu sync.Mutex
	delivered := 0

	slow := PublisherFunc(func(ctx context.Context, evt *MessageCreated) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		mu.Lock()
		delivered++
		mu.Unlock()
		return nil
	})

	d := NewDispatcher([]Publisher{slow}, 1, 1, 0)
	require.NoError(t, d.Publish(context.Background(), &MessageCreated{MessageID: "1"}))
	<-started
	require.NoError(t, d.Publish(context.Background(), &MessageCreated{MessageID: "2"}))

	begin := time.Now()
	err := d.Publish(context.Background(), &MessageCreated{MessageID: "3"})
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Less(t, time.Since(begin), 100*time.Millisecond)
	assert.Equal(t, int64(1), d.Dropped())

	close(release)
	d.Close()
	assert.Equal(t, 2, delivered)

	assert.ErrorIs(t, d.Publish(context.Background(), &MessageCreated{MessageID: "4"}), ErrDispatcherClosed)
	d.Close()
}

func TestDispatcher_SinkTimeout(t *testing.T) {
	errs := make(chan error, 1)
	hang := PublisherFunc(func(ctx context.Context, evt *MessageCreated) error {
		<-ctx.Done()
		errs <- ctx.Err()
		return ctx.Err()
	})

	d := NewDispatcher([]Publisher{hang}, 1, 1, 20*time.Millisecond)
	require.NoError(t, d.Publish(context.Background(), &MessageCreated{MessageID: "x"}))
	d.Close()

	assert.ErrorIs(t, <-errs, context.DeadlineExceeded)
}
