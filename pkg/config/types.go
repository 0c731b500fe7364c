package config

import (
	"time"

	"github.com/cfoust/spleef/pkg/session"
	"github.com/cfoust/spleef/pkg/spleef"
)

// Millis is a duration expressed in milliseconds in configuration files.
type Millis uint

func (m Millis) Duration() time.Duration {
	return time.Duration(m) * time.Millisecond
}

type GameSettings struct {
	TotalRounds int
	MinPlayers  int
	MaxPlayers  int
	LateJoin    bool
	Breakable   []string
	// BoundaryRadius applies to arenas without a radius of their own.
	BoundaryRadius   float64
	EliminationDelay Millis
	WarmupDelay      Millis
	Cooldown         Millis
	ErrorTimeout     Millis
	Loadout          []string
}

func (g GameSettings) Rules() session.Rules {
	return session.Rules{
		TotalRounds:      g.TotalRounds,
		MinPlayers:       g.MinPlayers,
		MaxPlayers:       g.MaxPlayers,
		LateJoin:         g.LateJoin,
		WarmupDelay:      g.WarmupDelay.Duration(),
		Cooldown:         g.Cooldown.Duration(),
		EliminationDelay: g.EliminationDelay.Duration(),
		ErrorTimeout:     g.ErrorTimeout.Duration(),
	}
}

func (g GameSettings) Settings() spleef.Settings {
	return spleef.Settings{
		Rules:          g.Rules(),
		Breakable:      spleef.NewMaterialSet(g.Breakable...),
		BoundaryRadius: g.BoundaryRadius,
	}
}

type Point struct {
	World string
	X     float64
	Y     float64
	Z     float64
}

func (p Point) Location(world string) session.Location {
	if p.World != "" {
		world = p.World
	}
	return session.Location{World: world, X: p.X, Y: p.Y, Z: p.Z}
}

type ArenaConfig struct {
	ID     string
	World  string
	Center Point
	Radius float64
	FloorY float64
	// Spawns maps spawn keys such as "spawn" and "spectate" to points.
	Spawns map[string]Point
}

func (a ArenaConfig) Arena() session.Arena {
	center := a.Center.Location(a.World)
	spawn := center
	if point, ok := a.Spawns[session.SpawnKey]; ok {
		spawn = point.Location(a.World)
	}

	return session.Arena{
		ID:     a.ID,
		World:  a.World,
		Spawn:  spawn,
		Center: center,
		Radius: a.Radius,
		FloorY: a.FloorY,
	}
}

type WebSettings struct {
	Address string `env:"SPLEEF_WEB_ADDRESS"`
	Port    int    `env:"SPLEEF_WEB_PORT"`
}

type RedisSettings struct {
	// An empty address disables the status mirror.
	Address  string `env:"SPLEEF_REDIS_ADDRESS"`
	Password string `env:"SPLEEF_REDIS_PASSWORD"`
	DB       int    `env:"SPLEEF_REDIS_DB"`
	TTL      Millis `env:"SPLEEF_REDIS_TTL"`
}

type RateLimitSettings struct {
	PerSecond float64 `env:"SPLEEF_RATE_PER_SECOND"`
	Burst     int     `env:"SPLEEF_RATE_BURST"`
}

type ServerSettings struct {
	Web WebSettings
	// An empty path disables result persistence.
	DBPath    string `env:"SPLEEF_DB_PATH"`
	Redis     RedisSettings
	Lanes     int `env:"SPLEEF_LANES"`
	RateLimit RateLimitSettings
}

type Config struct {
	Server ServerSettings
	Game   GameSettings
	Arenas []ArenaConfig
}

// Arena finds an arena by its ID.
func (c *Config) Arena(id string) (ArenaConfig, bool) {
	for _, arena := range c.Arenas {
		if arena.ID == id {
			return arena, true
		}
	}
	return ArenaConfig{}, false
}
