package stats

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cfoust/spleef/pkg/mmr"
	"github.com/cfoust/spleef/pkg/session"
	"github.com/cfoust/spleef/pkg/stage"
	"github.com/cfoust/spleef/pkg/utils"

	"github.com/repeale/fp-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	db, err := InitDB(filepath.Join(t.TempDir(), "stats.db"))
	require.NoError(t, err)
	return NewStore(db)
}

func TestRecordWin(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	outcomes, err := store.Record(ctx, "arena", session.Result{
		Round:        1,
		Winner:       "carol",
		Participants: []string{"alice", "bob", "carol"},
		Eliminated:   []string{"alice", "bob"},
		At:           time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, mmr.Outcome{Delta: 32, Rating: 1232}, outcomes["carol"])

	carol, err := store.Player(ctx, "carol")
	require.NoError(t, err)
	require.True(t, opt.IsSome(carol))
	assert.Equal(t, 1232, carol.Value.Rating)
	assert.Equal(t, uint(1), carol.Value.Wins)

	alice, err := store.Player(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1184, alice.Value.Rating)
	assert.Equal(t, uint(1), alice.Value.Losses)

	missing, err := store.Player(ctx, "dave")
	require.NoError(t, err)
	assert.True(t, opt.IsNone(missing))

	leaders, err := store.Leaderboard(ctx, 2)
	require.NoError(t, err)
	require.Len(t, leaders, 2)
	assert.Equal(t, "carol", leaders[0].Name)
	assert.Equal(t, "alice", leaders[1].Name)

	rounds, err := store.Rounds(ctx, "arena")
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	require.NotNil(t, rounds[0].Winner)
	assert.Equal(t, "carol", rounds[0].Winner.Name)
	assert.Len(t, rounds[0].Participants, 3)
}

func TestRecordTie(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.Record(ctx, "arena", session.Result{
		Round:        2,
		Tie:          true,
		Participants: []string{"alice", "bob"},
	})
	require.NoError(t, err)

	for _, name := range []string{"alice", "bob"} {
		player, err := store.Player(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, mmr.Initial, player.Value.Rating)
		assert.Equal(t, uint(1), player.Value.Draws)
	}

	rounds, err := store.Rounds(ctx, "arena")
	require.NoError(t, err)
	require.Len(t, rounds, 1)
	assert.True(t, rounds[0].Tie)
	assert.Nil(t, rounds[0].Winner)
}

func TestPoll(t *testing.T) {
	store := newStore(t)
	events := utils.NewTopic[session.Event]("events")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	subscriber := events.Subscribe()
	go func() {
		store.Poll(ctx, subscriber)
		close(done)
	}()

	result := &session.Result{
		Round:        1,
		Winner:       "alice",
		Participants: []string{"alice", "bob"},
	}

	// only the END -> COOLDOWN edge settles a round
	events.Publish(session.Event{SessionID: "arena", From: stage.Play, To: stage.End, Result: result})
	events.Publish(session.Event{SessionID: "arena", From: stage.End, To: stage.Cooldown, Result: result})
	events.Publish(session.Event{SessionID: "arena", From: stage.Cooldown, To: stage.Cooldown, Ended: true, Result: result})

	require.Eventually(t, func() bool {
		rounds, err := store.Rounds(context.Background(), "arena")
		return err == nil && len(rounds) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	rounds, err := store.Rounds(context.Background(), "arena")
	require.NoError(t, err)
	assert.Len(t, rounds, 1)
}
