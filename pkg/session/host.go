package session

import (
	"fmt"
	"math"

	"github.com/repeale/fp-go/option"
)

type Location struct {
	World string
	X     float64
	Y     float64
	Z     float64
}

func (l Location) String() string {
	return fmt.Sprintf("%s(%.1f, %.1f, %.1f)", l.World, l.X, l.Y, l.Z)
}

// HorizontalDistance ignores height, since falling is handled separately.
func (l Location) HorizontalDistance(other Location) float64 {
	return math.Hypot(l.X-other.X, l.Z-other.Z)
}

// Arena is the world a session is played in.
type Arena struct {
	ID     string
	World  string
	Spawn  Location
	Center Location
	// Radius of the playable area around Center. Zero means unbounded.
	Radius float64
	// FloorY is the height below which a player has fallen out.
	FloorY float64
}

// Contains reports whether the location is inside the playable area.
func (a Arena) Contains(l Location, radius float64) bool {
	if l.World != "" && a.World != "" && l.World != a.World {
		return false
	}
	if a.FloorY != 0 && l.Y < a.FloorY {
		return false
	}
	if radius <= 0 {
		return true
	}
	return a.Center.HorizontalDistance(l) <= radius
}

type BlockRef struct {
	World    string
	X        int
	Y        int
	Z        int
	Material string
}

type Arenas interface {
	ResolveArena(sessionID string) opt.Option[Arena]
	RestoreArena(arena Arena)
}

type Spawns interface {
	// ResolveSpawn looks up a configured spawn point by key, falling back to
	// the provided location.
	ResolveSpawn(arena Arena, key string, fallback Location) Location
}

type Players interface {
	Teleport(playerID string, location Location)
	ApplyLoadout(playerID string)
	ClearLoadout(playerID string)
	SendMessage(playerID string, text string)
}

type Blocks interface {
	RevertMaterial(block BlockRef)
}

type Registry interface {
	EndSession(sessionID string, announce bool)
}

// Host is everything the game needs from the platform it runs on.
type Host interface {
	Arenas
	Spawns
	Players
	Blocks
	Registry
}

const (
	SpawnKey    = "spawn"
	SpectateKey = "spectate"
)
