package session

import (
	"github.com/cfoust/spleef/pkg/schedule"
	"github.com/cfoust/spleef/pkg/stage"
)

type Outcome byte

const (
	// Ignored means the session was not in a state where eliminations count.
	Ignored Outcome = iota
	Continue
	Win
	Tie
)

func (o Outcome) String() string {
	switch o {
	case Ignored:
		return "ignored"
	case Continue:
		return "continue"
	case Win:
		return "win"
	case Tie:
		return "tie"
	default:
		return "unknown"
	}
}

type Verdict struct {
	Outcome Outcome
	Winner  string
	// Scheduled is true only for the call that scheduled the END transition.
	Scheduled bool
}

// Evaluator decides after each elimination whether the round is over.
type Evaluator struct {
	machine *Machine
}

// NewEvaluator also registers the evaluator with the machine, which consults
// it whenever a round enters PLAY.
func NewEvaluator(machine *Machine) *Evaluator {
	e := &Evaluator{
		machine: machine,
	}
	machine.evaluator = e
	return e
}

func decide(s *Session) Verdict {
	active := s.Roster.Active()
	switch {
	case len(active) == 1:
		return Verdict{Outcome: Win, Winner: active[0]}
	case len(active) == 0:
		return Verdict{Outcome: Tie}
	default:
		return Verdict{Outcome: Continue}
	}
}

func (e *Evaluator) playing(s *Session) bool {
	return !s.ended && s.stage == stage.Play
}

func (e *Evaluator) pendingVerdict(s *Session) Verdict {
	if s.result == nil || s.result.Tie {
		return Verdict{Outcome: Tie}
	}
	return Verdict{Outcome: Win, Winner: s.result.Winner}
}

func (e *Evaluator) settle(s *Session, verdict Verdict) {
	s.result = e.machine.result(s, verdict.Winner)
	e.machine.announce(s)

	logger := s.Logger()
	logger.Info().
		Str("outcome", verdict.Outcome.String()).
		Str("winner", verdict.Winner).
		Msg("round decided")
}

// Evaluate is called after a participant was marked as a spectator. If the
// round is decided it announces the result and schedules END after the
// elimination delay. Only one END is ever scheduled per round.
func (e *Evaluator) Evaluate(s *Session) Verdict {
	if !e.playing(s) {
		return Verdict{Outcome: Ignored}
	}

	if s.endPending {
		return e.pendingVerdict(s)
	}

	verdict := decide(s)
	if verdict.Outcome == Continue {
		return verdict
	}

	e.settle(s, verdict)

	s.endPending = true
	verdict.Scheduled = true
	e.machine.scheduler.Schedule(schedule.For(s.ID, s, "end", e.machine.rules.EliminationDelay, func() {
		e.machine.advance(s, stage.End)
	}))

	return verdict
}

// EvaluateNow is like Evaluate but enters END immediately when the round is
// decided. Any END already scheduled becomes stale.
func (e *Evaluator) EvaluateNow(s *Session) Verdict {
	if !e.playing(s) {
		return Verdict{Outcome: Ignored}
	}

	var verdict Verdict
	if s.endPending {
		verdict = e.pendingVerdict(s)
	} else {
		verdict = decide(s)
		if verdict.Outcome == Continue {
			return verdict
		}
		e.settle(s, verdict)
	}

	e.machine.advance(s, stage.End)
	return verdict
}

// Forfeit is called after player left the session. If they were the winner
// of a round whose END is still pending, the round is settled again as a tie
// among the participants that remain. It reports whether the result changed.
func (e *Evaluator) Forfeit(s *Session, player string) bool {
	if !e.playing(s) || !s.endPending {
		return false
	}

	if s.result == nil || s.result.Tie || s.result.Winner != player {
		return false
	}

	e.settle(s, Verdict{Outcome: Tie})
	return true
}
