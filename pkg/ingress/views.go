package ingress

import (
	"time"

	"github.com/cfoust/spleef/pkg/roster"
	"github.com/cfoust/spleef/pkg/session"
	"github.com/cfoust/spleef/pkg/stage"
	"github.com/cfoust/spleef/pkg/stats"
)

type createRequest struct {
	ID    string `json:"id"`
	Arena string `json:"arena,omitempty"`
}

type playerRequest struct {
	Player string `json:"player"`
}

type blockRequest struct {
	Player string           `json:"player"`
	Block  session.BlockRef `json:"block"`
}

type moveRequest struct {
	Player   string           `json:"player"`
	Location session.Location `json:"location"`
}

type damageRequest struct {
	Player string  `json:"player"`
	Damage float64 `json:"damage"`
	Health float64 `json:"health"`
}

type decisionResponse struct {
	Allowed bool `json:"allowed"`
}

type damageResponse struct {
	Cancelled bool `json:"cancelled"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type participantView struct {
	ID     string        `json:"id"`
	Status roster.Status `json:"status"`
	Joined time.Time     `json:"joined"`
}

type resultView struct {
	Round      int      `json:"round"`
	Winner     string   `json:"winner,omitempty"`
	Tie        bool     `json:"tie"`
	Eliminated []string `json:"eliminated"`
}

type sessionView struct {
	ID           string            `json:"id"`
	Stage        stage.Stage       `json:"stage"`
	Round        int               `json:"round"`
	TotalRounds  int               `json:"totalRounds"`
	Failed       bool              `json:"failed"`
	Ended        bool              `json:"ended"`
	Participants []participantView `json:"participants"`
	Result       *resultView       `json:"result,omitempty"`
	// CountdownMs is the time until the next timer fires, 0 if none is armed.
	CountdownMs int64 `json:"countdownMs"`
}

func viewSession(snapshot session.Snapshot) sessionView {
	view := sessionView{
		ID:           snapshot.ID,
		Stage:        snapshot.Stage,
		Round:        snapshot.Round,
		TotalRounds:  snapshot.TotalRounds,
		Failed:       snapshot.Failed,
		Ended:        snapshot.Ended,
		Participants: make([]participantView, 0, len(snapshot.Participants)),
		CountdownMs:  snapshot.Countdown.Milliseconds(),
	}

	for _, participant := range snapshot.Participants {
		view.Participants = append(view.Participants, participantView{
			ID:     participant.ID,
			Status: participant.Status,
			Joined: participant.Joined,
		})
	}

	if result := snapshot.Result; result != nil {
		view.Result = &resultView{
			Round:      result.Round,
			Winner:     result.Winner,
			Tie:        result.Tie,
			Eliminated: result.Eliminated,
		}
	}

	return view
}

type playerView struct {
	Name   string `json:"name"`
	Rating int    `json:"rating"`
	Wins   uint   `json:"wins"`
	Losses uint   `json:"losses"`
	Draws  uint   `json:"draws"`
}

func viewPlayer(player stats.Player) playerView {
	return playerView{
		Name:   player.Name,
		Rating: player.Rating,
		Wins:   player.Wins,
		Losses: player.Losses,
		Draws:  player.Draws,
	}
}
