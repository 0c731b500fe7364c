package session

import (
	"fmt"
	"time"

	"github.com/cfoust/spleef/pkg/schedule"
	"github.com/cfoust/spleef/pkg/stage"

	"github.com/repeale/fp-go/option"
)

// Rules are the per-game settings the stage machine runs with.
type Rules struct {
	TotalRounds int
	MinPlayers  int
	MaxPlayers  int
	LateJoin    bool

	WarmupDelay      time.Duration
	Cooldown         time.Duration
	EliminationDelay time.Duration
	ErrorTimeout     time.Duration
}

func DefaultRules() Rules {
	return Rules{
		TotalRounds:      1,
		MinPlayers:       3,
		MaxPlayers:       20,
		WarmupDelay:      10 * time.Second,
		Cooldown:         5 * time.Second,
		EliminationDelay: 3 * time.Second,
	}
}

// Machine drives sessions through their stages and runs each stage's entry
// behavior.
type Machine struct {
	rules     Rules
	host      Host
	scheduler schedule.Scheduler
	observer  Observer
	evaluator *Evaluator
	now       func() time.Time
}

func NewMachine(rules Rules, host Host, scheduler schedule.Scheduler, observer Observer) *Machine {
	if observer == nil {
		observer = noObserver{}
	}

	return &Machine{
		rules:     rules,
		host:      host,
		scheduler: scheduler,
		observer:  observer,
		now:       time.Now,
	}
}

func (m *Machine) Rules() Rules {
	return m.rules
}

// Start runs SETUP for a freshly created session.
func (m *Machine) Start(s *Session) error {
	return m.Transition(s, stage.Setup, true)
}

// Transition moves the session to next and synchronously runs the entry
// behavior of next. Re-entering the current stage requires force.
func (m *Machine) Transition(s *Session, next stage.Stage, force bool) error {
	if s.ended {
		return fmt.Errorf("%s: %w", s.ID, ErrSessionEnded)
	}

	from := s.stage
	if !stage.Allowed(from, next, force) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, next)
	}

	s.stage = next
	s.generation++
	s.beginPending = false
	s.endPending = false

	logger := s.Logger()
	logger.Debug().Str("from", from.String()).Msg("entering stage")

	m.observer.Observe(Event{
		SessionID:   s.ID,
		From:        from,
		To:          next,
		Round:       s.Round,
		TotalRounds: s.TotalRounds,
		Result:      s.result,
		At:          m.now(),
	})

	switch next {
	case stage.Setup:
		m.enterSetup(s)
	case stage.Warmup:
		m.enterWarmup(s)
	case stage.Begin:
		m.enterBegin(s)
	case stage.Play:
		m.enterPlay(s)
	case stage.End:
		m.enterEnd(s)
	case stage.Cooldown:
		m.enterCooldown(s)
	case stage.Reset:
		m.enterReset(s)
	case stage.Error:
		m.enterError(s)
	}

	return nil
}

// advance is used by entry behaviors, whose transitions are always valid.
func (m *Machine) advance(s *Session, next stage.Stage) {
	if err := m.Transition(s, next, false); err != nil {
		logger := s.Logger()
		logger.Error().Err(err).Msg("stage entry could not advance")
	}
}

func (m *Machine) Broadcast(s *Session, text string) {
	for _, id := range s.Roster.IDs() {
		m.host.SendMessage(id, text)
	}
}

func (m *Machine) enterSetup(s *Session) {
	arena := m.host.ResolveArena(s.ID)
	if opt.IsNone(arena) {
		logger := s.Logger()
		logger.Warn().Msg("could not resolve arena")
		m.advance(s, stage.Error)
		return
	}

	s.Arena = arena.Value
	s.HasArena = true
	s.Failed = false
	s.WarmupSpawn = m.host.ResolveSpawn(s.Arena, SpawnKey, s.Arena.Spawn)
	s.SpectatorSpawn = m.host.ResolveSpawn(s.Arena, SpectateKey, s.Arena.Spawn)

	s.Roster.ResetAllToActive()
	s.result = nil
	s.announced = false

	m.advance(s, stage.Warmup)
}

func (m *Machine) enterWarmup(s *Session) {
	for _, id := range s.Roster.IDs() {
		m.host.Teleport(id, s.WarmupSpawn)
		m.host.ApplyLoadout(id)
	}

	m.RequestBegin(s)
}

// RequestBegin schedules the warmup to end once enough players are present.
func (m *Machine) RequestBegin(s *Session) bool {
	if s.ended || s.stage != stage.Warmup || s.beginPending {
		return false
	}

	if s.Roster.Len() < m.rules.MinPlayers {
		return false
	}

	s.beginPending = true
	m.Broadcast(s, fmt.Sprintf("The round starts in %s.", m.rules.WarmupDelay.Round(time.Second)))
	m.scheduler.Schedule(schedule.For(s.ID, s, "begin", m.rules.WarmupDelay, func() {
		s.beginPending = false
		if s.Roster.Len() < m.rules.MinPlayers {
			m.Broadcast(s, "Not enough players, waiting for more to join.")
			return
		}
		m.advance(s, stage.Begin)
	}))

	return true
}

func (m *Machine) enterBegin(s *Session) {
	m.Broadcast(s, fmt.Sprintf("Round %d of %d. Break the floor under your opponents!", s.Round, s.TotalRounds))
	m.advance(s, stage.Play)
}

// enterPlay settles a round that is decided the moment it starts, such as
// one begun with a single participant.
func (m *Machine) enterPlay(s *Session) {
	if m.evaluator != nil {
		m.evaluator.Evaluate(s)
	}
}

func (m *Machine) enterEnd(s *Session) {
	if s.result == nil {
		s.result = m.result(s, "")
	}

	if !s.announced {
		m.announce(s)
	}

	// Nobody is active outside of a round, the winner included.
	for _, id := range s.Roster.Active() {
		_ = s.Roster.MarkSpectator(id)
	}

	m.advance(s, stage.Cooldown)
}

func (m *Machine) enterCooldown(s *Session) {
	m.scheduler.Schedule(schedule.For(s.ID, s, "cooldown", m.rules.Cooldown, func() {
		m.cooldownElapsed(s)
	}))
}

func (m *Machine) cooldownElapsed(s *Session) {
	if s.Round >= s.TotalRounds {
		m.Finish(s, true)
		return
	}

	// Nobody left to play against.
	if s.Roster.Len() < 2 {
		m.Finish(s, true)
		return
	}

	s.Round++
	m.advance(s, stage.Reset)
}

func (m *Machine) enterReset(s *Session) {
	s.Roster.ResetAllToActive()
	if s.HasArena {
		m.host.RestoreArena(s.Arena)
	}
	m.advance(s, stage.Setup)
}

func (m *Machine) enterError(s *Session) {
	s.Failed = true

	if m.rules.ErrorTimeout <= 0 {
		return
	}

	m.scheduler.Schedule(schedule.For(s.ID, s, "error-timeout", m.rules.ErrorTimeout, func() {
		m.Finish(s, false)
	}))
}

// Finish ends the session for good. It returns false if it already ended.
func (m *Machine) Finish(s *Session, announce bool) bool {
	if s.ended {
		return false
	}

	s.ended = true

	logger := s.Logger()
	logger.Info().Bool("announce", announce).Msg("session ended")

	for _, id := range s.Roster.IDs() {
		m.host.ClearLoadout(id)
	}

	m.observer.Observe(Event{
		SessionID:   s.ID,
		From:        s.stage,
		To:          s.stage,
		Round:       s.Round,
		TotalRounds: s.TotalRounds,
		Ended:       true,
		Result:      s.result,
		At:          m.now(),
	})

	m.host.EndSession(s.ID, announce)
	return true
}

func (m *Machine) result(s *Session, winner string) *Result {
	eliminated := make([]string, 0)
	for _, participant := range s.Roster.Participants() {
		if participant.ID != winner {
			eliminated = append(eliminated, participant.ID)
		}
	}

	return &Result{
		Round:        s.Round,
		Winner:       winner,
		Tie:          winner == "",
		Participants: s.Roster.IDs(),
		Eliminated:   eliminated,
		At:           m.now(),
	}
}

func (m *Machine) announce(s *Session) {
	s.announced = true
	if s.result == nil || s.result.Tie {
		m.Broadcast(s, "The round ended in a tie.")
		return
	}
	m.Broadcast(s, fmt.Sprintf("%s won the round!", s.result.Winner))
}
