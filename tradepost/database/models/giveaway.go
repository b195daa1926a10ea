package models

import (
	"time"

	"github.com/uptrace/bun"
)

type GiveawayStatus string

const (
	GiveawayStatusActive   GiveawayStatus = "active"
	GiveawayStatusFinished GiveawayStatus = "finished"
)

// Giveaway is a fixed-duration raffle. The prize field may carry several
// comma-separated prizes when more than one winner is requested.
type Giveaway struct {
	bun.BaseModel `bun:"table:giveaways,alias:g"`

	ID            int64          `bun:"id,pk,autoincrement"`
	ChannelID     string         `bun:"channel_id,notnull"`
	MessageID     string         `bun:"message_id,notnull"`
	CreatedBy     string         `bun:"created_by,notnull"`
	CreatedByName string         `bun:"created_by_name,notnull"`
	WinnersCount  int            `bun:"winners_count,notnull"`
	Prize         string         `bun:"prize,notnull"`
	EndTime       time.Time      `bun:"end_time,notnull"`
	Status        GiveawayStatus `bun:"status,notnull,default:'active'"`
	CreatedAt     time.Time      `bun:"created_at,notnull"`
	FinishedAt    time.Time      `bun:"finished_at,nullzero"`
}

// GiveawayParticipant records one user's entry. The (giveaway_id, user_id)
// pair is unique, which is what makes join idempotent.
type GiveawayParticipant struct {
	bun.BaseModel `bun:"table:giveaway_participants,alias:gp"`

	ID         int64     `bun:"id,pk,autoincrement"`
	GiveawayID int64     `bun:"giveaway_id,notnull,unique:giveaway_participants_entry"`
	UserID     string    `bun:"user_id,notnull,unique:giveaway_participants_entry"`
	UserName   string    `bun:"user_name,notnull"`
	JoinedAt   time.Time `bun:"joined_at,notnull"`
}
