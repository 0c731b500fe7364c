package session

import (
	"time"

	"github.com/cfoust/spleef/pkg/roster"
	"github.com/cfoust/spleef/pkg/stage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Result is the outcome of a single round.
type Result struct {
	Round int
	// Winner is empty for a tie.
	Winner       string
	Tie          bool
	Participants []string
	Eliminated   []string
	At           time.Time
}

// Session is one running match. All of its fields are owned by the goroutine
// that dispatches the session's events.
type Session struct {
	ID          string
	Roster      *roster.Roster
	Round       int
	TotalRounds int
	Created     time.Time

	Arena          Arena
	HasArena       bool
	WarmupSpawn    Location
	SpectatorSpawn Location
	// Failed is set while the session is stuck in ERROR.
	Failed bool

	stage      stage.Stage
	generation uint64
	ended      bool

	beginPending bool
	endPending   bool
	announced    bool
	result       *Result
}

func New(id string, totalRounds int) *Session {
	if totalRounds < 1 {
		totalRounds = 1
	}

	return &Session{
		ID:          id,
		Roster:      roster.New(),
		Round:       1,
		TotalRounds: totalRounds,
		Created:     time.Now(),
		stage:       stage.Setup,
	}
}

func (s *Session) Stage() stage.Stage {
	return s.stage
}

// Generation increases on every transition.
func (s *Session) Generation() uint64 {
	return s.generation
}

func (s *Session) Ended() bool {
	return s.ended
}

// Result returns the result of the round in progress, if it has been decided.
func (s *Session) Result() *Result {
	return s.result
}

// EndPending reports whether a delayed END has been scheduled for this round.
func (s *Session) EndPending() bool {
	return s.endPending
}

func (s *Session) Logger() zerolog.Logger {
	return log.With().
		Str("session", s.ID).
		Str("stage", s.stage.String()).
		Int("round", s.Round).
		Logger()
}

type Snapshot struct {
	ID           string
	Stage        stage.Stage
	Round        int
	TotalRounds  int
	Failed       bool
	Ended        bool
	Participants []roster.Participant
	Result       *Result
	// Countdown is the time left until the next scheduled task, when the
	// scheduler can tell.
	Countdown time.Duration
}

func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		ID:           s.ID,
		Stage:        s.stage,
		Round:        s.Round,
		TotalRounds:  s.TotalRounds,
		Failed:       s.Failed,
		Ended:        s.ended,
		Participants: s.Roster.Participants(),
		Result:       s.result,
	}
}

// Event is published on every transition and when a session ends.
type Event struct {
	SessionID   string
	From        stage.Stage
	To          stage.Stage
	Round       int
	TotalRounds int
	Ended       bool
	Result      *Result
	At          time.Time
}

type Observer interface {
	Observe(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Observe(event Event) {
	f(event)
}

type noObserver struct{}

func (noObserver) Observe(Event) {}
