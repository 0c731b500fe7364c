package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopic(t *testing.T) {
	topic := NewTopic[int]("test")
	a := topic.Subscribe()
	b := topic.Subscribe()
	require.Equal(t, 2, topic.NumSubscribers())

	topic.Publish(1)
	assert.Equal(t, 1, <-a.Recv())
	assert.Equal(t, 1, <-b.Recv())

	b.Done()
	topic.Publish(2)
	assert.Equal(t, 2, <-a.Recv())
	assert.Equal(t, 1, topic.NumSubscribers())
}

func TestTopicDropsForSlowSubscriber(t *testing.T) {
	topic := NewTopic[int]("test")
	slow := topic.Subscribe()
	defer slow.Done()

	for i := 0; i < SUBSCRIBER_BUFFER+5; i++ {
		topic.Publish(i)
	}

	assert.Len(t, slow.Recv(), SUBSCRIBER_BUFFER)
	assert.Equal(t, 0, <-slow.Recv())
}

func TestLifetime(t *testing.T) {
	before := time.Now()
	lifetime := NewLifetime(context.Background())
	assert.False(t, lifetime.Started().Before(before))
	stopped := make(chan struct{})

	lifetime.Go(func(ctx context.Context) {
		<-ctx.Done()
		close(stopped)
	})

	assert.False(t, lifetime.IsDone())
	lifetime.Cancel()
	lifetime.Wait()
	assert.True(t, lifetime.IsDone())

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not stop")
	}
}
