package mmr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairing(t *testing.T) {
	elo := NewElo()

	assert.Equal(t, 0.5, elo.ExpectedScore(1200, 1200))
	assert.Equal(t, 16, elo.RatingDelta(1200, 1200, 1))
	assert.Equal(t, 0, elo.RatingDelta(1200, 1200, 0.5))

	a, b := elo.Outcome(1200, 1200, 0)
	assert.Equal(t, Outcome{Delta: -16, Rating: 1184}, a)
	assert.Equal(t, Outcome{Delta: 16, Rating: 1216}, b)
	assert.Equal(t, "1216 (+16)", b.String())
}

func TestRound(t *testing.T) {
	elo := NewElo()

	outcomes := elo.Round(
		map[string]int{"alice": 1200, "bob": 1200},
		[]string{"alice", "bob", "carol"},
		"carol",
	)

	assert.Equal(t, Outcome{Delta: 32, Rating: 1232}, outcomes["carol"])
	assert.Equal(t, Outcome{Delta: -16, Rating: 1184}, outcomes["alice"])
	assert.Equal(t, Outcome{Delta: -16, Rating: 1184}, outcomes["bob"])

	sum := 0
	for _, outcome := range outcomes {
		sum += outcome.Delta
	}
	assert.Equal(t, 0, sum)
}

func TestRoundTie(t *testing.T) {
	elo := NewElo()

	outcomes := elo.Round(
		map[string]int{"alice": 1400},
		[]string{"alice", "bob"},
		"",
	)

	assert.Less(t, outcomes["alice"].Delta, 0)
	assert.Equal(t, -outcomes["alice"].Delta, outcomes["bob"].Delta)
}
