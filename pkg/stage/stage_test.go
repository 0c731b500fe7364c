package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowed(t *testing.T) {
	assert.True(t, Allowed(Setup, Warmup, false))
	assert.True(t, Allowed(Setup, Error, false))
	assert.True(t, Allowed(Cooldown, Reset, false))
	assert.True(t, Allowed(Reset, Setup, false))

	assert.False(t, Allowed(Play, Reset, false))
	assert.False(t, Allowed(Play, Reset, true))
	assert.False(t, Allowed(Error, Warmup, true))
	assert.False(t, Allowed(Error, Setup, false))
	assert.True(t, Allowed(Error, Setup, true))

	// re-entry
	assert.False(t, Allowed(Setup, Setup, false))
	assert.True(t, Allowed(Setup, Setup, true))
	assert.True(t, Allowed(Error, Error, true))
}

func TestEveryStageHasEdges(t *testing.T) {
	for stage := Setup; stage <= Error; stage++ {
		_, ok := edges[stage]
		assert.True(t, ok, "no edges for %s", stage)
	}
	assert.Empty(t, Next(Error))
}

func TestText(t *testing.T) {
	text, err := Cooldown.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "COOLDOWN", string(text))

	var parsed Stage
	require.NoError(t, parsed.UnmarshalText([]byte("cooldown")))
	assert.Equal(t, Cooldown, parsed)

	require.Error(t, parsed.UnmarshalText([]byte("intermission")))
	assert.Equal(t, "Stage(42)", Stage(42).String())
}
