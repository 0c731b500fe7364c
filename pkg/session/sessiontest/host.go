// Package sessiontest provides a recording Host for tests.
package sessiontest

import (
	"strings"

	"github.com/cfoust/spleef/pkg/session"

	"github.com/repeale/fp-go/option"
	"github.com/sasha-s/go-deadlock"
)

type Teleport struct {
	Player   string
	Location session.Location
}

type EndCall struct {
	SessionID string
	Announce  bool
}

var DefaultArena = session.Arena{
	World:  "spleef",
	Spawn:  session.Location{World: "spleef", X: 0, Y: 64, Z: 0},
	Center: session.Location{World: "spleef", X: 0, Y: 64, Z: 0},
	Radius: 20,
}

// Host records every call made to it.
type Host struct {
	mutex deadlock.Mutex

	Arena      session.Arena
	Unresolved map[string]bool
	Spawns     map[string]session.Location

	Teleports []Teleport
	Loadouts  map[string]bool
	Messages  map[string][]string
	Reverted  []session.BlockRef
	Restored  int
	Ended     []EndCall
}

func NewHost() *Host {
	return &Host{
		Arena:      DefaultArena,
		Unresolved: make(map[string]bool),
		Spawns: map[string]session.Location{
			session.SpawnKey:    {World: "spleef", X: 0, Y: 70, Z: 0},
			session.SpectateKey: {World: "spleef", X: 0, Y: 90, Z: 0},
		},
		Loadouts: make(map[string]bool),
		Messages: make(map[string][]string),
	}
}

var _ session.Host = (*Host)(nil)

func (h *Host) ResolveArena(sessionID string) opt.Option[session.Arena] {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.Unresolved[sessionID] {
		return opt.None[session.Arena]()
	}
	return opt.Some(h.Arena)
}

func (h *Host) RestoreArena(session.Arena) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.Restored++
}

func (h *Host) ResolveSpawn(arena session.Arena, key string, fallback session.Location) session.Location {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if location, ok := h.Spawns[key]; ok {
		return location
	}
	return fallback
}

func (h *Host) Teleport(playerID string, location session.Location) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.Teleports = append(h.Teleports, Teleport{playerID, location})
}

func (h *Host) ApplyLoadout(playerID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.Loadouts[playerID] = true
}

func (h *Host) ClearLoadout(playerID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.Loadouts[playerID] = false
}

func (h *Host) SendMessage(playerID string, text string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.Messages[playerID] = append(h.Messages[playerID], text)
}

func (h *Host) RevertMaterial(block session.BlockRef) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.Reverted = append(h.Reverted, block)
}

func (h *Host) EndSession(sessionID string, announce bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.Ended = append(h.Ended, EndCall{sessionID, announce})
}

// Reverts returns a copy of every block reverted so far.
func (h *Host) Reverts() []session.BlockRef {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	reverted := make([]session.BlockRef, len(h.Reverted))
	copy(reverted, h.Reverted)
	return reverted
}

// LastTeleport returns where the player was last sent.
func (h *Host) LastTeleport(playerID string) (session.Location, bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for i := len(h.Teleports) - 1; i >= 0; i-- {
		if h.Teleports[i].Player == playerID {
			return h.Teleports[i].Location, true
		}
	}
	return session.Location{}, false
}

// Received counts messages to the player containing substr.
func (h *Host) Received(playerID string, substr string) (n int) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for _, message := range h.Messages[playerID] {
		if strings.Contains(message, substr) {
			n++
		}
	}
	return
}

func (h *Host) EndCalls() []EndCall {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	calls := make([]EndCall, len(h.Ended))
	copy(calls, h.Ended)
	return calls
}

// SetResolved lets a previously unresolved session find its arena.
func (h *Host) SetResolved(sessionID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.Unresolved, sessionID)
}

// Block is a block of the given material inside DefaultArena.
func Block(material string) session.BlockRef {
	return session.BlockRef{World: DefaultArena.World, X: 1, Y: 63, Z: 1, Material: material}
}
