package utils

import (
	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
)

const SUBSCRIBER_BUFFER = 256

type Topic[T any] struct {
	name        string
	subscribers map[chan T]struct{}
	mutex       deadlock.Mutex
}

func NewTopic[T any](name string) *Topic[T] {
	return &Topic[T]{
		name:        name,
		subscribers: make(map[chan T]struct{}),
	}
}

// Publish hands value to every subscriber. A subscriber whose buffer is full
// misses the value rather than stalling the publisher.
func (t *Topic[T]) Publish(value T) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	for subscriber := range t.subscribers {
		select {
		case subscriber <- value:
		default:
			log.Warn().Str("topic", t.name).Msg("dropped message for slow subscriber")
		}
	}
}

func (t *Topic[T]) NumSubscribers() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.subscribers)
}

type Subscriber[T any] struct {
	channel chan T
	topic   *Topic[T]
}

func (t *Topic[T]) Subscribe() *Subscriber[T] {
	channel := make(chan T, SUBSCRIBER_BUFFER)
	t.mutex.Lock()
	t.subscribers[channel] = struct{}{}
	t.mutex.Unlock()

	return &Subscriber[T]{channel, t}
}

func (s *Subscriber[T]) Recv() <-chan T {
	return s.channel
}

func (s *Subscriber[T]) Done() {
	topic := s.topic
	topic.mutex.Lock()
	delete(topic.subscribers, s.channel)
	topic.mutex.Unlock()
}
