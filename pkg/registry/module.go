package registry

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/cfoust/spleef/pkg/schedule"
	"github.com/cfoust/spleef/pkg/session"
	"github.com/cfoust/spleef/pkg/spleef"
	"github.com/cfoust/spleef/pkg/utils"

	"github.com/cespare/xxhash/v2"
	"github.com/repeale/fp-go/option"
	"github.com/rs/zerolog/log"
)

var (
	ErrStopped  = errors.New("registry stopped")
	ErrPanicked = errors.New("session handler panicked")
)

const LANE_QUEUE = 64

// Registry owns every running session. Each session is pinned to one lane,
// a goroutine that runs that session's events and timers one at a time.
type Registry struct {
	lifetime *utils.Lifetime
	lanes    []chan func()
	game     *spleef.Game
	timers   *schedule.Timed
	host     session.Host
	events   *utils.Topic[session.Event]
}

// endHook lets the registry release a session's timers when it ends.
type endHook struct {
	session.Host
	registry *Registry
}

func (e *endHook) EndSession(sessionID string, announce bool) {
	e.registry.timers.Clear(sessionID)
	e.Host.EndSession(sessionID, announce)
}

func New(ctx context.Context, settings spleef.Settings, host session.Host, numLanes int) *Registry {
	if numLanes < 1 {
		numLanes = 1
	}

	r := &Registry{
		lifetime: utils.NewLifetime(ctx),
		lanes:    make([]chan func(), numLanes),
		host:     host,
		events:   utils.NewTopic[session.Event]("events"),
	}

	for i := range r.lanes {
		r.lanes[i] = make(chan func(), LANE_QUEUE)
	}

	r.timers = schedule.NewTimed(r)
	r.game = spleef.New(
		settings,
		&endHook{Host: host, registry: r},
		r.timers,
		session.ObserverFunc(r.events.Publish),
	)

	return r
}

func (r *Registry) Game() *spleef.Game {
	return r.game
}

func (r *Registry) Events() *utils.Topic[session.Event] {
	return r.events
}

// Start launches the lanes.
func (r *Registry) Start() {
	for i, lane := range r.lanes {
		index := i
		queue := lane
		r.lifetime.Go(func(ctx context.Context) {
			log.Debug().Int("lane", index).Msg("lane started")
			for {
				select {
				case <-ctx.Done():
					return
				case fn := <-queue:
					fn()
				}
			}
		})
	}
}

func (r *Registry) lane(sessionID string) chan func() {
	return r.lanes[xxhash.Sum64String(sessionID)%uint64(len(r.lanes))]
}

// Dispatch queues fn on the session's lane. It is dropped if the registry
// has stopped.
func (r *Registry) Dispatch(sessionID string, fn func()) {
	select {
	case r.lane(sessionID) <- func() { r.run(sessionID, fn) }:
	case <-r.lifetime.Ctx().Done():
		log.Debug().Str("session", sessionID).Msg("dropped event after shutdown")
	}
}

// run isolates a panicking handler to its own session.
func (r *Registry) run(sessionID string, fn func()) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			log.Error().
				Str("session", sessionID).
				Interface("panic", recovered).
				Str("stack", string(debug.Stack())).
				Msg("session handler panicked, ending session")
			r.game.End(sessionID, false)
			err = fmt.Errorf("%s: %w: %v", sessionID, ErrPanicked, recovered)
		}
	}()

	fn()
	return nil
}

// Do runs fn on the session's lane and waits for its result.
func (r *Registry) Do(ctx context.Context, sessionID string, fn func() error) error {
	result := make(chan error, 1)

	job := func() {
		var handlerErr error
		if err := r.run(sessionID, func() { handlerErr = fn() }); err != nil {
			handlerErr = err
		}
		result <- handlerErr
	}

	select {
	case r.lane(sessionID) <- job:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.lifetime.Ctx().Done():
		return ErrStopped
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.lifetime.Ctx().Done():
		return ErrStopped
	}
}

func (r *Registry) Create(ctx context.Context, sessionID string) error {
	return r.CreateWith(ctx, sessionID, nil)
}

// CreateWith is like Create, but runs prepare on the session's lane once the
// id is known to be free and before setup begins. An error from prepare
// aborts the creation.
func (r *Registry) CreateWith(ctx context.Context, sessionID string, prepare func() error) error {
	return r.Do(ctx, sessionID, func() error {
		if opt.IsSome(r.game.Session(sessionID)) {
			return fmt.Errorf("%s: %w", sessionID, spleef.ErrSessionExists)
		}

		if prepare != nil {
			if err := prepare(); err != nil {
				return err
			}
		}

		_, err := r.game.Start(sessionID)
		return err
	})
}

func (r *Registry) End(ctx context.Context, sessionID string, announce bool) error {
	return r.Do(ctx, sessionID, func() error {
		if !r.game.End(sessionID, announce) {
			return fmt.Errorf("%s: %w", sessionID, spleef.ErrUnknownSession)
		}
		return nil
	})
}

func (r *Registry) Snapshot(ctx context.Context, sessionID string) (opt.Option[session.Snapshot], error) {
	var snapshot opt.Option[session.Snapshot]
	err := r.Do(ctx, sessionID, func() error {
		s := r.game.Session(sessionID)
		if opt.IsNone(s) {
			snapshot = opt.None[session.Snapshot]()
			return nil
		}
		value := s.Value.Snapshot()
		value.Countdown = r.timers.Remaining(sessionID)
		snapshot = opt.Some(value)
		return nil
	})
	return snapshot, err
}

func (r *Registry) Snapshots(ctx context.Context) []session.Snapshot {
	snapshots := make([]session.Snapshot, 0)
	for _, id := range r.game.Sessions() {
		snapshot, err := r.Snapshot(ctx, id)
		if err != nil || opt.IsNone(snapshot) {
			continue
		}
		snapshots = append(snapshots, snapshot.Value)
	}
	return snapshots
}

// Shutdown stops the lanes and then ends every session that is still
// running. No session events are processed concurrently with this.
func (r *Registry) Shutdown() int {
	r.lifetime.Cancel()
	r.lifetime.Wait()

	ended := r.game.OnServerStop()
	log.Info().
		Dur("uptime", time.Since(r.lifetime.Started())).
		Int("sessions", ended).
		Msg("registry stopped")
	return ended
}
