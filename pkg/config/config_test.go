package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cfoust/spleef/pkg/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, dir, name, contents string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestDefault(t *testing.T) {
	config, err := Process([]string{})
	require.NoError(t, err)

	assert.Equal(t, 29999, config.Server.Web.Port)
	assert.Equal(t, 8, config.Server.Lanes)
	assert.Equal(t, 3, config.Game.TotalRounds)
	assert.Equal(t, 3, config.Game.MinPlayers)
	assert.Equal(t, 20, config.Game.MaxPlayers)
	assert.False(t, config.Game.LateJoin)
	assert.Equal(t, 3*time.Second, config.Game.EliminationDelay.Duration())
	assert.Equal(t, []string{"snow_block", "wool", "clay", "dirt", "tnt"}, config.Game.Breakable)

	arena, ok := config.Arena("spleef")
	require.True(t, ok)
	converted := arena.Arena()
	assert.Equal(t, "spleef", converted.World)
	assert.Equal(t, session.Location{World: "spleef", X: 0, Y: 65, Z: 0}, converted.Spawn)
	assert.Equal(t, 24.0, converted.Radius)

	settings := config.Game.Settings()
	assert.True(t, settings.Breakable.Contains("minecraft:snow_block"))
	assert.False(t, settings.Breakable.Contains("stone"))
	assert.Equal(t, 3, settings.Rules.TotalRounds)
}

func TestProcess(t *testing.T) {
	dir := t.TempDir()

	// yaml config
	{
		path := write(t, dir, "config.yaml", `
server:
  web:
    port: 1234
game:
  totalRounds: 2
  breakable: ["wool"]
`)
		config, err := Process([]string{path})
		require.NoError(t, err)
		assert.Equal(t, 1234, config.Server.Web.Port)
		assert.Equal(t, 2, config.Game.TotalRounds)
		assert.Equal(t, []string{"wool"}, config.Game.Breakable)
		assert.Empty(t, config.Arenas)
	}

	// json config
	{
		path := write(t, dir, "config.json", `{
  "server": {
    "web": {
      "port": 1235
    }
  },
  "arenas": [
    {"id": "pit", "world": "pit", "center": {"y": 10}, "radius": 8}
  ]
}`)
		config, err := Process([]string{path})
		require.NoError(t, err)
		assert.Equal(t, 1235, config.Server.Web.Port)

		arena, ok := config.Arena("pit")
		require.True(t, ok)
		assert.Equal(t, session.Location{World: "pit", Y: 10}, arena.Arena().Spawn)
	}

	// multiple files are unified
	{
		first := write(t, dir, "first.yml", `
server:
  web:
    port: 1234
`)
		second := write(t, dir, "second.yaml", `
game:
  lateJoin: true
`)
		config, err := Process([]string{first, second})
		require.NoError(t, err)
		assert.Equal(t, 1234, config.Server.Web.Port)
		assert.True(t, config.Game.LateJoin)
	}

	// conflicting files
	{
		first := write(t, dir, "a.yaml", "server:\n  lanes: 2\n")
		second := write(t, dir, "b.yaml", "server:\n  lanes: 3\n")
		_, err := Process([]string{first, second})
		require.Error(t, err)
	}

	// invalid values
	{
		path := write(t, dir, "rounds.yaml", "game:\n  totalRounds: 0\n")
		_, err := Process([]string{path})
		require.Error(t, err)

		path = write(t, dir, "players.yaml", "game:\n  minPlayers: 5\n  maxPlayers: 4\n")
		_, err = Process([]string{path})
		require.Error(t, err)
	}

	_, err := Process([]string{filepath.Join(dir, "missing.yaml")})
	require.ErrorContains(t, err, "missing.yaml: does not exist")

	_, err = Process([]string{write(t, dir, "config.toml", "")})
	require.ErrorContains(t, err, "config.toml: not in a valid format")
}

func TestLoadLanes(t *testing.T) {
	t.Setenv("SPLEEF_LANES", "0")
	_, err := Load(nil)
	require.ErrorContains(t, err, "server.lanes must be at least 1")

	t.Setenv("SPLEEF_LANES", "2")
	config, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 2, config.Server.Lanes)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("SPLEEF_WEB_PORT", "4321")
	t.Setenv("SPLEEF_REDIS_ADDRESS", "localhost:6379")
	t.Setenv("SPLEEF_REDIS_TTL", "1500")

	config, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, 4321, config.Server.Web.Port)
	assert.Equal(t, "localhost:6379", config.Server.Redis.Address)
	assert.Equal(t, 1500*time.Millisecond, config.Server.Redis.TTL.Duration())
	assert.Equal(t, "spleef.db", config.Server.DBPath)

	t.Setenv("SPLEEF_LANES", "many")
	_, err = Load(nil)
	require.ErrorContains(t, err, "parse env:")
}
