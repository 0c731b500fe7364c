// Package bridge implements session.Host for a remote game platform. Every
// side effect becomes a Command published for the feed to deliver.
package bridge

import (
	"errors"
	"fmt"

	"github.com/cfoust/spleef/pkg/config"
	"github.com/cfoust/spleef/pkg/session"
	"github.com/cfoust/spleef/pkg/utils"

	"github.com/repeale/fp-go/option"
	"github.com/rs/zerolog/log"
	"github.com/sasha-s/go-deadlock"
)

var ErrUnknownArena = errors.New("unknown arena")

type Bridge struct {
	mutex deadlock.RWMutex

	arenas map[string]config.ArenaConfig
	// sessions that play in an arena with a different ID
	assignments map[string]string
	loadout     []string

	commands *utils.Topic[Command]
}

var _ session.Host = (*Bridge)(nil)

func New(arenas []config.ArenaConfig, loadout []string) *Bridge {
	b := &Bridge{
		arenas:      make(map[string]config.ArenaConfig),
		assignments: make(map[string]string),
		loadout:     loadout,
		commands:    utils.NewTopic[Command]("commands"),
	}

	for _, arena := range arenas {
		b.arenas[arena.ID] = arena
	}

	return b
}

func (b *Bridge) Commands() *utils.Topic[Command] {
	return b.commands
}

// Assign makes the session play in the given arena instead of the arena
// named after the session.
func (b *Bridge) Assign(sessionID string, arenaID string) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, ok := b.arenas[arenaID]; !ok {
		return fmt.Errorf("%s: %w", arenaID, ErrUnknownArena)
	}

	b.assignments[sessionID] = arenaID
	return nil
}

func (b *Bridge) Arenas() []string {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	ids := make([]string, 0, len(b.arenas))
	for id := range b.arenas {
		ids = append(ids, id)
	}
	return ids
}

func (b *Bridge) ResolveArena(sessionID string) opt.Option[session.Arena] {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	arenaID := sessionID
	if assigned, ok := b.assignments[sessionID]; ok {
		arenaID = assigned
	}

	arena, ok := b.arenas[arenaID]
	if !ok {
		log.Warn().Str("session", sessionID).Str("arena", arenaID).Msg("no such arena")
		return opt.None[session.Arena]()
	}

	return opt.Some(arena.Arena())
}

func (b *Bridge) RestoreArena(arena session.Arena) {
	b.commands.Publish(Command{
		Kind:  RestoreCommand,
		Arena: arena.ID,
	})
}

func (b *Bridge) ResolveSpawn(arena session.Arena, key string, fallback session.Location) session.Location {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	arenaConfig, ok := b.arenas[arena.ID]
	if !ok {
		return fallback
	}

	point, ok := arenaConfig.Spawns[key]
	if !ok {
		return fallback
	}

	return point.Location(arenaConfig.World)
}

func (b *Bridge) Teleport(playerID string, location session.Location) {
	b.commands.Publish(Command{
		Kind:     TeleportCommand,
		Player:   playerID,
		Location: &location,
	})
}

func (b *Bridge) ApplyLoadout(playerID string) {
	b.commands.Publish(Command{
		Kind:   LoadoutCommand,
		Player: playerID,
		Items:  b.loadout,
	})
}

func (b *Bridge) ClearLoadout(playerID string) {
	b.commands.Publish(Command{
		Kind:   ClearLoadoutCommand,
		Player: playerID,
	})
}

func (b *Bridge) SendMessage(playerID string, text string) {
	b.commands.Publish(Command{
		Kind:   MessageCommand,
		Player: playerID,
		Text:   text,
	})
}

func (b *Bridge) RevertMaterial(block session.BlockRef) {
	b.commands.Publish(Command{
		Kind:  RevertCommand,
		Block: &block,
	})
}

func (b *Bridge) EndSession(sessionID string, announce bool) {
	b.mutex.Lock()
	delete(b.assignments, sessionID)
	b.mutex.Unlock()

	b.commands.Publish(Command{
		Kind:      EndCommand,
		SessionID: sessionID,
		Announce:  announce,
	})
}
