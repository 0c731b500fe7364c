package session_test

import (
	"testing"

	"github.com/cfoust/spleef/pkg/session"
	"github.com/cfoust/spleef/pkg/stage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleSurvivorWins(t *testing.T) {
	h := newHarness(testRules())
	s := h.playing(t, 3)

	require.NoError(t, s.Roster.MarkSpectator("player0"))
	verdict := h.evaluator.Evaluate(s)
	assert.Equal(t, session.Continue, verdict.Outcome)
	assert.Equal(t, 0, h.pending("end"))

	require.NoError(t, s.Roster.MarkSpectator("player2"))
	verdict = h.evaluator.Evaluate(s)
	assert.Equal(t, session.Win, verdict.Outcome)
	assert.Equal(t, "player1", verdict.Winner)
	assert.True(t, verdict.Scheduled)
	assert.Equal(t, 1, h.pending("end"))

	// the win is announced before END is entered
	assert.Equal(t, stage.Play, s.Stage())
	for _, id := range []string{"player0", "player1", "player2"} {
		assert.Equal(t, 1, h.host.Received(id, "player1 won the round!"))
	}

	h.clock.Advance(h.rules.EliminationDelay - 1)
	assert.Equal(t, stage.Play, s.Stage())
	h.clock.Advance(1)
	assert.Equal(t, stage.Cooldown, s.Stage())
	assert.Equal(t, 1, h.entered(stage.End))

	result := s.Result()
	require.NotNil(t, result)
	assert.Equal(t, "player1", result.Winner)
	assert.False(t, result.Tie)
	assert.ElementsMatch(t, []string{"player0", "player2"}, result.Eliminated)

	// announced once, not again on END entry
	assert.Equal(t, 1, h.host.Received("player0", "won the round"))
}

func TestSimultaneousEliminationTies(t *testing.T) {
	h := newHarness(testRules())
	s := h.playing(t, 2)

	require.NoError(t, s.Roster.MarkSpectator("player0"))
	require.NoError(t, s.Roster.MarkSpectator("player1"))

	first := h.evaluator.Evaluate(s)
	second := h.evaluator.Evaluate(s)

	assert.Equal(t, session.Tie, first.Outcome)
	assert.True(t, first.Scheduled)
	assert.Equal(t, session.Tie, second.Outcome)
	assert.False(t, second.Scheduled)
	assert.Equal(t, 1, h.pending("end"))

	h.clock.Advance(h.rules.EliminationDelay)
	assert.Equal(t, 1, h.entered(stage.End))
	require.NotNil(t, s.Result())
	assert.True(t, s.Result().Tie)
	assert.Empty(t, s.Result().Winner)
	assert.Equal(t, 1, h.host.Received("player0", "tie"))
}

func TestLateEliminationKeepsWinner(t *testing.T) {
	h := newHarness(testRules())
	s := h.playing(t, 2)

	require.NoError(t, s.Roster.MarkSpectator("player0"))
	h.evaluator.Evaluate(s)

	// the winner falls during the victory delay
	require.NoError(t, s.Roster.MarkSpectator("player1"))
	verdict := h.evaluator.Evaluate(s)
	assert.Equal(t, session.Win, verdict.Outcome)
	assert.Equal(t, "player1", verdict.Winner)
	assert.False(t, verdict.Scheduled)

	h.clock.Flush()
	assert.Equal(t, "player1", s.Result().Winner)
}

func TestEvaluateOutsidePlay(t *testing.T) {
	h := newHarness(testRules())
	s := session.New("arena-1", 1)
	require.NoError(t, s.Roster.Add("alice"))
	require.NoError(t, h.machine.Start(s))

	require.NoError(t, s.Roster.MarkSpectator("alice"))
	assert.Equal(t, session.Ignored, h.evaluator.Evaluate(s).Outcome)
	assert.Equal(t, session.Ignored, h.evaluator.EvaluateNow(s).Outcome)
	assert.Equal(t, stage.Warmup, s.Stage())
	assert.Empty(t, h.clock.Pending())
}

func TestBoundaryExitEndsImmediately(t *testing.T) {
	h := newHarness(testRules())
	s := h.playing(t, 3)

	require.NoError(t, s.Roster.MarkSpectator("player0"))
	assert.Equal(t, session.Continue, h.evaluator.EvaluateNow(s).Outcome)
	assert.Equal(t, stage.Play, s.Stage())

	require.NoError(t, s.Roster.MarkSpectator("player1"))
	verdict := h.evaluator.EvaluateNow(s)
	assert.Equal(t, session.Win, verdict.Outcome)
	assert.Equal(t, "player2", verdict.Winner)
	assert.Equal(t, stage.Cooldown, s.Stage())
	assert.Equal(t, 1, h.entered(stage.End))
}

func TestStaleDelayedEnd(t *testing.T) {
	h := newHarness(testRules())
	s := h.playing(t, 3)

	require.NoError(t, s.Roster.MarkSpectator("player0"))
	h.evaluator.Evaluate(s)
	require.NoError(t, s.Roster.MarkSpectator("player1"))
	h.evaluator.Evaluate(s)
	require.Equal(t, 1, h.pending("end"))

	// the winner leaves the arena before the delayed END fires
	require.NoError(t, s.Roster.MarkSpectator("player2"))
	verdict := h.evaluator.EvaluateNow(s)
	assert.Equal(t, "player2", verdict.Winner)
	require.Equal(t, 1, h.entered(stage.End))
	require.Equal(t, stage.Cooldown, s.Stage())

	skipped := h.clock.Skipped
	h.clock.Advance(h.rules.EliminationDelay)

	assert.Equal(t, skipped+1, h.clock.Skipped)
	assert.Equal(t, 1, h.entered(stage.End))
	assert.Equal(t, 1, h.entered(stage.Cooldown))
	assert.Equal(t, stage.Cooldown, s.Stage())
}

func TestStaleEndDoesNotLeakIntoNextRound(t *testing.T) {
	rules := testRules()
	rules.Cooldown = 0
	rules.WarmupDelay = 0
	h := newHarness(rules)
	s := h.playing(t, 3)

	require.NoError(t, s.Roster.MarkSpectator("player0"))
	require.NoError(t, s.Roster.MarkSpectator("player1"))
	h.evaluator.Evaluate(s)
	require.NoError(t, s.Roster.MarkSpectator("player2"))
	h.evaluator.EvaluateNow(s)

	// zero cooldown and warmup: the next round is already playing
	h.clock.Advance(0)
	require.Equal(t, stage.Play, s.Stage())
	require.Equal(t, 2, s.Round)

	h.clock.Advance(rules.EliminationDelay)
	assert.Equal(t, stage.Play, s.Stage())
	assert.Equal(t, 1, h.entered(stage.End))
}

func TestWinnerForfeits(t *testing.T) {
	h := newHarness(testRules())
	s := h.playing(t, 3)

	// nothing to forfeit before the round is decided
	assert.False(t, h.evaluator.Forfeit(s, "player1"))

	require.NoError(t, s.Roster.MarkSpectator("player0"))
	require.NoError(t, s.Roster.MarkSpectator("player2"))
	require.Equal(t, session.Win, h.evaluator.Evaluate(s).Outcome)

	_, err := s.Roster.Remove("player0")
	require.NoError(t, err)
	assert.False(t, h.evaluator.Forfeit(s, "player0"))
	assert.Equal(t, "player1", s.Result().Winner)

	_, err = s.Roster.Remove("player1")
	require.NoError(t, err)
	assert.True(t, h.evaluator.Forfeit(s, "player1"))

	result := s.Result()
	require.NotNil(t, result)
	assert.True(t, result.Tie)
	assert.Empty(t, result.Winner)
	assert.Equal(t, []string{"player2"}, result.Participants)
	assert.Equal(t, 1, h.host.Received("player2", "tie"))

	// the END scheduled for the win still closes the round
	assert.Equal(t, 1, h.pending("end"))
	h.clock.Advance(h.rules.EliminationDelay)
	assert.Equal(t, stage.Cooldown, s.Stage())
	assert.True(t, s.Result().Tie)
	assert.Equal(t, 1, h.host.Received("player2", "tie"))
}
