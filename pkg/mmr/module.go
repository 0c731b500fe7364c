// https://github.com/kortemy/elo-go
//MIT License

//Copyright (c) 2017 Dusan Lilic

//Permission is hereby granted, free of charge, to any person obtaining a copy
//of this software and associated documentation files (the "Software"), to deal
//in the Software without restriction, including without limitation the rights
//to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
//copies of the Software, and to permit persons to whom the Software is
//furnished to do so, subject to the following conditions:

//The above copyright notice and this permission notice shall be included in all
//copies or substantial portions of the Software.

// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
package mmr

import (
	"fmt"
	"math"
)

const (
	// K is the default K-Factor
	K = 32
	// D is the default deviation
	D = 400
	// Initial is the rating assigned to players without one.
	Initial = 1200
)

// Elo calculates Elo rating changes based on the configured factors.
type Elo struct {
	K int
	D int
}

// Outcome is the rating change of a single player.
type Outcome struct {
	Delta  int
	Rating int
}

func (o Outcome) String() string {
	return fmt.Sprintf("%d (%+d)", o.Rating, o.Delta)
}

func NewElo() *Elo {
	return &Elo{K, D}
}

// ExpectedScore gives the expected chance that the first player wins.
func (e *Elo) ExpectedScore(ratingA, ratingB int) float64 {
	return 1 / (1 + math.Pow(10, float64(ratingB-ratingA)/float64(e.D)))
}

// RatingDelta gives the rating change for the first player for the given
// score: 1 for a win, 0.5 for a draw and 0 for a loss.
func (e *Elo) RatingDelta(ratingA, ratingB int, score float64) int {
	return int(float64(e.K) * (score - e.ExpectedScore(ratingA, ratingB)))
}

// Outcome gives the change for both players of a single pairing.
func (e *Elo) Outcome(ratingA, ratingB int, score float64) (Outcome, Outcome) {
	delta := e.RatingDelta(ratingA, ratingB, score)
	return Outcome{delta, ratingA + delta}, Outcome{-delta, ratingB - delta}
}

// Round scores a free-for-all round as a set of pairings against the
// pre-round ratings. With a winner, the winner beats every other player and
// the rest are not paired with each other. Without one, every pair draws.
// Players missing from ratings start at Initial.
func (e *Elo) Round(ratings map[string]int, players []string, winner string) map[string]Outcome {
	rating := func(player string) int {
		if value, ok := ratings[player]; ok {
			return value
		}
		return Initial
	}

	deltas := make(map[string]int, len(players))
	for _, player := range players {
		deltas[player] = 0
	}

	if winner != "" {
		for _, player := range players {
			if player == winner {
				continue
			}
			delta := e.RatingDelta(rating(winner), rating(player), 1)
			deltas[winner] += delta
			deltas[player] -= delta
		}
	} else {
		for i, a := range players {
			for _, b := range players[i+1:] {
				delta := e.RatingDelta(rating(a), rating(b), 0.5)
				deltas[a] += delta
				deltas[b] -= delta
			}
		}
	}

	outcomes := make(map[string]Outcome, len(players))
	for player, delta := range deltas {
		outcomes[player] = Outcome{
			Delta:  delta,
			Rating: rating(player) + delta,
		}
	}
	return outcomes
}
