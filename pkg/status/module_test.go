package status

import (
	"context"
	"testing"
	"time"

	"github.com/cfoust/spleef/pkg/session"
	"github.com/cfoust/spleef/pkg/stage"

	"github.com/repeale/fp-go/option"
	"github.com/sasha-s/go-deadlock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mutex  deadlock.Mutex
	values map[string][]byte
	ttls   map[string]time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		values: make(map[string][]byte),
		ttls:   make(map[string]time.Duration),
	}
}

func (m *memoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.values[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	value, ok := m.values[key]
	if !ok {
		return nil, Nil
	}
	return value, nil
}

func (m *memoryStore) Del(ctx context.Context, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.values, key)
	return nil
}

func TestMirror(t *testing.T) {
	store := newMemoryStore()
	mirror := NewMirror(store, time.Minute)
	ctx := context.Background()

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, mirror.Apply(ctx, session.Event{
		SessionID:   "arena",
		From:        stage.End,
		To:          stage.Cooldown,
		Round:       2,
		TotalRounds: 3,
		Result:      &session.Result{Round: 2, Winner: "alice"},
		At:          at,
	}))

	assert.Equal(t, time.Minute, store.ttls["spleef:session:arena"])

	status, err := mirror.Lookup(ctx, "arena")
	require.NoError(t, err)
	require.True(t, opt.IsSome(status))
	assert.True(t, at.Equal(status.Value.Updated))
	status.Value.Updated = at
	assert.Equal(t, Status{
		ID:          "arena",
		Stage:       stage.Cooldown,
		Round:       2,
		TotalRounds: 3,
		Winner:      "alice",
		Updated:     at,
	}, status.Value)

	require.NoError(t, mirror.Apply(ctx, session.Event{SessionID: "arena", Ended: true}))
	status, err = mirror.Lookup(ctx, "arena")
	require.NoError(t, err)
	assert.True(t, opt.IsNone(status))
}
