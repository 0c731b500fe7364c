package stats

import (
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type Entity struct {
	ID uint `gorm:"primaryKey"`
}

type Player struct {
	Entity

	Name   string `gorm:"unique;not null;size:64"`
	Rating int    `gorm:"not null"`
	Wins   uint
	Losses uint
	Draws  uint
}

// Round is one finished round of a session.
type Round struct {
	Entity

	SessionID string `gorm:"index;not null;size:64"`
	Number    int    `gorm:"not null"`
	Tie       bool
	WinnerID  *uint
	At        time.Time

	Winner       *Player `gorm:"foreignKey:WinnerID"`
	Participants []*Participation
}

type Participation struct {
	Entity

	RoundID  uint `gorm:"index;not null"`
	PlayerID uint `gorm:"not null"`
	Delta    int
	Rating   int

	Player *Player
}

func InitDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&Player{},
		&Round{},
		&Participation{},
	)
	if err != nil {
		return nil, err
	}

	return db, nil
}
