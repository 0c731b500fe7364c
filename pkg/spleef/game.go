package spleef

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cfoust/spleef/pkg/roster"
	"github.com/cfoust/spleef/pkg/schedule"
	"github.com/cfoust/spleef/pkg/session"
	"github.com/cfoust/spleef/pkg/stage"

	"github.com/repeale/fp-go/option"
	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
)

var (
	ErrUnknownSession = errors.New("unknown session")
	ErrSessionExists  = errors.New("session already exists")
	ErrSessionFull    = errors.New("session is full")
	ErrLateJoin       = errors.New("session already in progress")
)

type Settings struct {
	Rules     session.Rules
	Breakable MaterialSet
	// BoundaryRadius is used for arenas that do not define their own radius.
	BoundaryRadius float64
}

func DefaultSettings() Settings {
	return Settings{
		Rules:          session.DefaultRules(),
		Breakable:      NewMaterialSet(DefaultBreakable...),
		BoundaryRadius: 32,
	}
}

type Decision byte

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Game receives the platform's events for every spleef session and turns
// them into roster changes and stage transitions. Events for one session
// must not be delivered concurrently.
type Game struct {
	settings  Settings
	host      session.Host
	machine   *session.Machine
	evaluator *session.Evaluator
	observer  session.Observer

	mutex    deadlock.RWMutex
	sessions map[string]*session.Session
}

func New(settings Settings, host session.Host, scheduler schedule.Scheduler, observer session.Observer) *Game {
	if settings.Breakable == nil {
		settings.Breakable = NewMaterialSet(DefaultBreakable...)
	}

	g := &Game{
		settings: settings,
		host:     host,
		observer: observer,
		sessions: make(map[string]*session.Session),
	}
	g.machine = session.NewMachine(settings.Rules, host, scheduler, session.ObserverFunc(g.observe))
	g.evaluator = session.NewEvaluator(g.machine)
	return g
}

func (g *Game) observe(event session.Event) {
	if event.Ended {
		g.mutex.Lock()
		delete(g.sessions, event.SessionID)
		g.mutex.Unlock()
	}

	if g.observer != nil {
		g.observer.Observe(event)
	}
}

func (g *Game) Settings() Settings {
	return g.settings
}

func (g *Game) Session(id string) opt.Option[*session.Session] {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	s, ok := g.sessions[id]
	if !ok {
		return opt.None[*session.Session]()
	}
	return opt.Some(s)
}

// Sessions returns the ids of every tracked session, sorted.
func (g *Game) Sessions() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	ids := make([]string, 0, len(g.sessions))
	for id := range g.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (g *Game) lookup(id string) (*session.Session, error) {
	s := g.Session(id)
	if opt.IsNone(s) || s.Value.Ended() {
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownSession)
	}
	return s.Value, nil
}

// Start creates a session and runs its setup.
func (g *Game) Start(id string) (*session.Session, error) {
	g.mutex.Lock()
	if _, ok := g.sessions[id]; ok {
		g.mutex.Unlock()
		return nil, fmt.Errorf("%s: %w", id, ErrSessionExists)
	}
	s := session.New(id, g.settings.Rules.TotalRounds)
	g.sessions[id] = s
	g.mutex.Unlock()

	logger := s.Logger()
	logger.Info().Msg("starting session")

	if err := g.machine.Start(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (g *Game) OnJoin(id string, player string) error {
	s, err := g.lookup(id)
	if err != nil {
		return err
	}
	logger := s.Logger().With().Str("player", player).Logger()

	if s.Roster.Has(player) {
		logger.Debug().Msg("ignoring duplicate join")
		return nil
	}

	limit := g.settings.Rules.MaxPlayers
	if limit > 0 && s.Roster.Len() >= limit {
		return fmt.Errorf("%s: %w", id, ErrSessionFull)
	}

	lobby := s.Stage().Lobby()
	if !lobby && !g.settings.Rules.LateJoin {
		return fmt.Errorf("%s: %w", id, ErrLateJoin)
	}

	if err := s.Roster.Add(player); err != nil {
		if errors.Is(err, roster.ErrAlreadyPresent) {
			return nil
		}
		return err
	}

	if !lobby {
		_ = s.Roster.MarkSpectator(player)
		g.host.ClearLoadout(player)
		g.host.Teleport(player, s.SpectatorSpawn)
		g.host.SendMessage(player, "A round is in progress, you are spectating.")
		logger.Info().Msg("joined as spectator")
		return nil
	}

	g.host.Teleport(player, s.WarmupSpawn)
	g.host.ApplyLoadout(player)
	logger.Info().Int("players", s.Roster.Len()).Msg("joined")

	if s.Stage() == stage.Warmup {
		g.machine.RequestBegin(s)
	}

	return nil
}

func (g *Game) OnQuit(id string, player string) error {
	s, err := g.lookup(id)
	if err != nil {
		return err
	}
	logger := s.Logger().With().Str("player", player).Logger()

	remaining, err := s.Roster.Remove(player)
	if errors.Is(err, roster.ErrNotFound) {
		logger.Debug().Msg("ignoring quit of unknown participant")
		return nil
	}
	g.host.ClearLoadout(player)
	logger.Info().Int("remaining", remaining).Msg("left")

	if remaining == 0 {
		g.machine.Finish(s, false)
		return nil
	}

	// the round is already decided, unless it was the winner who left
	if s.EndPending() {
		if g.evaluator.Forfeit(s, player) {
			logger.Info().Msg("winner left before the round closed")
		}
		return nil
	}

	// leaving mid-round counts as an elimination
	g.evaluator.Evaluate(s)
	return nil
}

// OnBreakAttempt decides whether a player may break a block. Denied
// attempts are reverted.
func (g *Game) OnBreakAttempt(id string, player string, block session.BlockRef) (Decision, error) {
	s, err := g.lookup(id)
	if err != nil {
		return Deny, err
	}

	participant, ok := s.Roster.Get(player)
	if s.Stage() == stage.Play &&
		ok && participant.Status == roster.Active &&
		g.settings.Breakable.Contains(block.Material) {
		return Allow, nil
	}

	g.host.RevertMaterial(block)
	return Deny, nil
}

// OnPlaceAttempt denies every block placement. Placed blocks are reverted.
func (g *Game) OnPlaceAttempt(id string, player string, block session.BlockRef) (Decision, error) {
	if _, err := g.lookup(id); err != nil {
		return Deny, err
	}

	g.host.RevertMaterial(block)
	return Deny, nil
}

// OnDrop denies dropping items, so loadouts stay intact.
func (g *Game) OnDrop(id string, player string) (Decision, error) {
	if _, err := g.lookup(id); err != nil {
		return Deny, err
	}
	return Deny, nil
}

// OnChat keeps spectators quiet while a round is being played.
func (g *Game) OnChat(id string, player string) (Decision, error) {
	s, err := g.lookup(id)
	if err != nil {
		return Deny, err
	}

	if s.Stage() == stage.Play && s.Roster.IsSpectator(player) {
		return Deny, nil
	}
	return Allow, nil
}

func (g *Game) eliminate(s *session.Session, player string, reason string) {
	if err := s.Roster.MarkSpectator(player); err != nil {
		return
	}

	logger := s.Logger()
	logger.Info().Str("player", player).Str("reason", reason).Msg("eliminated")

	g.host.ClearLoadout(player)
	g.host.Teleport(player, s.SpectatorSpawn)
	g.host.SendMessage(player, fmt.Sprintf("You %s and are now spectating.", reason))
}

func (g *Game) OnBoundaryExit(id string, player string) error {
	s, err := g.lookup(id)
	if err != nil {
		return err
	}

	participant, ok := s.Roster.Get(player)
	if !ok {
		return nil
	}

	switch {
	case participant.Status == roster.Spectator:
		g.host.Teleport(player, s.SpectatorSpawn)
	case s.Stage() == stage.Play:
		g.eliminate(s, player, "left the arena")
		g.evaluator.EvaluateNow(s)
	default:
		g.host.Teleport(player, s.WarmupSpawn)
	}

	return nil
}

// OnMove checks a player's position against the arena boundary.
func (g *Game) OnMove(id string, player string, location session.Location) error {
	s, err := g.lookup(id)
	if err != nil {
		return err
	}

	if !s.HasArena || !s.Roster.Has(player) {
		return nil
	}

	radius := s.Arena.Radius
	if radius <= 0 {
		radius = g.settings.BoundaryRadius
	}

	if s.Arena.Contains(location, radius) {
		return nil
	}

	return g.OnBoundaryExit(id, player)
}

// OnDamage returns whether the damage should be cancelled. Players never
// take real damage; a lethal hit during a round is an elimination.
func (g *Game) OnDamage(id string, player string, damage float64, health float64) (bool, error) {
	s, err := g.lookup(id)
	if err != nil {
		return false, err
	}

	if !s.Roster.Has(player) {
		return false, nil
	}

	if damage >= health {
		return true, g.OnDeath(id, player)
	}

	return true, nil
}

func (g *Game) OnDeath(id string, player string) error {
	s, err := g.lookup(id)
	if err != nil {
		return err
	}

	participant, ok := s.Roster.Get(player)
	if !ok {
		return nil
	}

	switch {
	case participant.Status == roster.Spectator:
		g.host.Teleport(player, s.SpectatorSpawn)
	case s.Stage() == stage.Play:
		g.eliminate(s, player, "fell")
		g.evaluator.Evaluate(s)
	default:
		g.host.Teleport(player, s.WarmupSpawn)
	}

	return nil
}

// Begin ends the warmup right away. A round needs at least two players.
func (g *Game) Begin(id string) error {
	s, err := g.lookup(id)
	if err != nil {
		return err
	}

	if s.Roster.Len() < 2 {
		return fmt.Errorf(
			"%w: %s has %d players",
			session.ErrInvalidTransition,
			id,
			s.Roster.Len(),
		)
	}

	if err := g.machine.Transition(s, stage.Begin, false); err != nil {
		logger := s.Logger()
		logger.Warn().Err(err).Msg("could not begin")
		return err
	}
	return nil
}

// Retry attempts setup again for a session stuck in ERROR.
func (g *Game) Retry(id string) error {
	s, err := g.lookup(id)
	if err != nil {
		return err
	}

	if s.Stage() != stage.Error {
		return fmt.Errorf("%w: %s -> %s", session.ErrInvalidTransition, s.Stage(), stage.Setup)
	}

	return g.machine.Transition(s, stage.Setup, true)
}

// End terminates a session regardless of its stage.
func (g *Game) End(id string, announce bool) bool {
	s := g.Session(id)
	if opt.IsNone(s) {
		return false
	}
	return g.machine.Finish(s.Value, announce)
}

// OnServerStop ends every tracked session.
func (g *Game) OnServerStop() int {
	ended := 0
	for _, id := range g.Sessions() {
		if g.End(id, false) {
			ended++
		}
	}

	log.Info().Int("sessions", ended).Msg("ended sessions for shutdown")
	return ended
}
