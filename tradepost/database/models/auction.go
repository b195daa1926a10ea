package models

import (
	"time"

	"github.com/uptrace/bun"
)

type AuctionStatus string

const (
	AuctionStatusActive   AuctionStatus = "active"
	AuctionStatusFinished AuctionStatus = "finished"
)

// Auction is one sealed-ascending sale hosted in a single channel. Rows are
// never deleted; finalization only flips the status so the offer history
// stays auditable.
type Auction struct {
	bun.BaseModel `bun:"table:auctions,alias:a"`

	ID                int64         `bun:"id,pk,autoincrement"`
	ChannelID         string        `bun:"channel_id,notnull"`
	MessageID         string        `bun:"message_id,notnull"`
	NotificationID    string        `bun:"notification_id,nullzero"`
	MinPrice          float64       `bun:"min_price,notnull"`
	MaxPrice          float64       `bun:"max_price,notnull"`
	CurrentOffer      float64       `bun:"current_offer,nullzero"`
	CurrentBidderID   string        `bun:"current_bidder_id,nullzero"`
	CurrentBidderName string        `bun:"current_bidder_name,nullzero"`
	CreatedBy         string        `bun:"created_by,notnull"`
	Status            AuctionStatus `bun:"status,notnull,default:'active'"`
	WinnerID          string        `bun:"winner_id,nullzero"`
	CreatedAt         time.Time     `bun:"created_at,notnull"`
	FinishedAt        time.Time     `bun:"finished_at,nullzero"`
}

// HasOffer reports whether at least one bid has been accepted.
func (a *Auction) HasOffer() bool {
	return a.CurrentBidderID != ""
}

// Offer is one accepted bid. Immutable once written; the per-auction history
// is the append-only sequence of these rows ordered by created_at.
type Offer struct {
	bun.BaseModel `bun:"table:offers,alias:o"`

	ID        int64     `bun:"id,pk,autoincrement"`
	AuctionID int64     `bun:"auction_id,notnull"`
	UserID    string    `bun:"user_id,notnull"`
	UserName  string    `bun:"user_name,notnull"`
	Amount    float64   `bun:"amount,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}
