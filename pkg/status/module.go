// Package status mirrors the stage of every running session into a
// key-value store so other services can see which arenas are busy.
package status

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cfoust/spleef/pkg/session"
	"github.com/cfoust/spleef/pkg/stage"
	"github.com/cfoust/spleef/pkg/utils"

	"github.com/fxamacker/cbor/v2"
	"github.com/repeale/fp-go/option"
	"github.com/rs/zerolog/log"
)

const KEY_SESSION = "spleef:session:%s"

var encoding, _ = cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()

type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Del(ctx context.Context, key string) error
}

type Status struct {
	ID          string
	Stage       stage.Stage
	Round       int
	TotalRounds int
	Winner      string
	Tie         bool
	Updated     time.Time
}

func FromEvent(event session.Event) Status {
	status := Status{
		ID:          event.SessionID,
		Stage:       event.To,
		Round:       event.Round,
		TotalRounds: event.TotalRounds,
		Updated:     event.At,
	}
	if event.Result != nil {
		status.Winner = event.Result.Winner
		status.Tie = event.Result.Tie
	}
	return status
}

type Mirror struct {
	store Store
	ttl   time.Duration
}

func NewMirror(store Store, ttl time.Duration) *Mirror {
	return &Mirror{
		store: store,
		ttl:   ttl,
	}
}

func key(sessionID string) string {
	return fmt.Sprintf(KEY_SESSION, sessionID)
}

// Apply writes the status carried by the event, or removes it once the
// session has ended.
func (m *Mirror) Apply(ctx context.Context, event session.Event) error {
	if event.Ended {
		return m.store.Del(ctx, key(event.SessionID))
	}

	data, err := encoding.Marshal(FromEvent(event))
	if err != nil {
		return err
	}

	return m.store.Set(ctx, key(event.SessionID), data, m.ttl)
}

func (m *Mirror) Lookup(ctx context.Context, sessionID string) (opt.Option[Status], error) {
	data, err := m.store.Get(ctx, key(sessionID))
	if errors.Is(err, Nil) {
		return opt.None[Status](), nil
	}
	if err != nil {
		return opt.None[Status](), err
	}

	var status Status
	if err := cbor.Unmarshal(data, &status); err != nil {
		return opt.None[Status](), err
	}
	return opt.Some(status), nil
}

func (m *Mirror) Poll(ctx context.Context, subscriber *utils.Subscriber[session.Event]) {
	defer subscriber.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-subscriber.Recv():
			if err := m.Apply(ctx, event); err != nil {
				log.Warn().Err(err).Str("session", event.SessionID).Msg("failed to mirror session status")
			}
		}
	}
}
