package stats

import (
	"context"
	"errors"
	"fmt"

	"github.com/cfoust/spleef/pkg/mmr"
	"github.com/cfoust/spleef/pkg/session"
	"github.com/cfoust/spleef/pkg/stage"
	"github.com/cfoust/spleef/pkg/utils"

	"github.com/repeale/fp-go/option"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Store records round results and keeps a rating for every player.
type Store struct {
	db  *gorm.DB
	elo *mmr.Elo
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:  db,
		elo: mmr.NewElo(),
	}
}

func (s *Store) player(tx *gorm.DB, name string) (*Player, error) {
	player := Player{}
	err := tx.Where(Player{Name: name}).
		Attrs(Player{Rating: mmr.Initial}).
		FirstOrCreate(&player).Error
	if err != nil {
		return nil, err
	}
	return &player, nil
}

// Record stores a finished round and applies its rating changes.
func (s *Store) Record(ctx context.Context, sessionID string, result session.Result) (map[string]mmr.Outcome, error) {
	if len(result.Participants) == 0 {
		return nil, nil
	}

	var outcomes map[string]mmr.Outcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		players := make(map[string]*Player, len(result.Participants))
		ratings := make(map[string]int, len(result.Participants))
		for _, name := range result.Participants {
			player, err := s.player(tx, name)
			if err != nil {
				return err
			}
			players[name] = player
			ratings[name] = player.Rating
		}

		winner := result.Winner
		if result.Tie {
			winner = ""
		}
		outcomes = s.elo.Round(ratings, result.Participants, winner)

		round := Round{
			SessionID: sessionID,
			Number:    result.Round,
			Tie:       result.Tie,
			At:        result.At,
		}
		if player, ok := players[winner]; ok {
			round.WinnerID = &player.ID
		}
		if err := tx.Create(&round).Error; err != nil {
			return err
		}

		for _, name := range result.Participants {
			player := players[name]
			outcome := outcomes[name]

			player.Rating = outcome.Rating
			switch {
			case winner == "":
				player.Draws++
			case winner == name:
				player.Wins++
			default:
				player.Losses++
			}

			if err := tx.Save(player).Error; err != nil {
				return err
			}

			err := tx.Create(&Participation{
				RoundID:  round.ID,
				PlayerID: player.ID,
				Delta:    outcome.Delta,
				Rating:   outcome.Rating,
			}).Error
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("could not record round %d of %s: %w", result.Round, sessionID, err)
	}

	return outcomes, nil
}

func (s *Store) Player(ctx context.Context, name string) (opt.Option[Player], error) {
	player := Player{}
	err := s.db.WithContext(ctx).Where(Player{Name: name}).First(&player).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return opt.None[Player](), nil
	}
	if err != nil {
		return opt.None[Player](), err
	}
	return opt.Some(player), nil
}

// Leaderboard returns the highest rated players first.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]Player, error) {
	players := make([]Player, 0)
	err := s.db.WithContext(ctx).
		Order("rating desc").
		Order("name").
		Limit(limit).
		Find(&players).Error
	return players, err
}

func (s *Store) Rounds(ctx context.Context, sessionID string) ([]Round, error) {
	rounds := make([]Round, 0)
	err := s.db.WithContext(ctx).
		Preload("Winner").
		Preload("Participants.Player").
		Where(Round{SessionID: sessionID}).
		Order("number").
		Find(&rounds).Error
	return rounds, err
}

// Poll records every round result the subscriber receives until ctx is
// done. A round is settled when its session leaves END for COOLDOWN.
func (s *Store) Poll(ctx context.Context, subscriber *utils.Subscriber[session.Event]) {
	defer subscriber.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-subscriber.Recv():
			if event.Ended || event.To != stage.Cooldown || event.Result == nil {
				continue
			}

			outcomes, err := s.Record(ctx, event.SessionID, *event.Result)
			if err != nil {
				log.Error().Err(err).Str("session", event.SessionID).Msg("failed to record round")
				continue
			}

			for name, outcome := range outcomes {
				log.Info().
					Str("session", event.SessionID).
					Str("player", name).
					Str("rating", outcome.String()).
					Msg("rating updated")
			}
		}
	}
}
