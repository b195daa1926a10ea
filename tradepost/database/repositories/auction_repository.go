package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tradepost/tradepost-bot/tradepost/database/models"
	"github.com/uptrace/bun"
)

type AuctionRepository interface {
	Create(ctx context.Context, auction *models.Auction) error
	GetByMessageID(ctx context.Context, messageID string) (*models.Auction, error)
	GetByChannelID(ctx context.Context, channelID string) (*models.Auction, error)
	GetActive(ctx context.Context) ([]*models.Auction, error)
	RecordOffer(ctx context.Context, auctionID int64, userID, userName string, amount float64, at time.Time) error
	UpdateNotificationID(ctx context.Context, auctionID int64, notificationID string) error
	Finish(ctx context.Context, auctionID int64, winnerID string, at time.Time) (bool, error)
	GetOffers(ctx context.Context, auctionID int64) ([]*models.Offer, error)
}

type auctionRepository struct {
	db *bun.DB
}

func NewAuctionRepository(db *bun.DB) AuctionRepository {
	return &auctionRepository{db: db}
}

func (r *auctionRepository) Create(ctx context.Context, auction *models.Auction) error {
	if auction.CreatedAt.IsZero() {
		auction.CreatedAt = time.Now()
	}
	auction.Status = models.AuctionStatusActive

	if _, err := r.db.NewInsert().Model(auction).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create auction: %w", err)
	}
	return nil
}

func (r *auctionRepository) GetByMessageID(ctx context.Context, messageID string) (*models.Auction, error) {
	auction := new(models.Auction)
	err := r.db.NewSelect().
		Model(auction).
		Where("message_id = ? AND status = ?", messageID, models.AuctionStatusActive).
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get auction by message: %w", err)
	}
	return auction, nil
}

func (r *auctionRepository) GetByChannelID(ctx context.Context, channelID string) (*models.Auction, error) {
	auction := new(models.Auction)
	err := r.db.NewSelect().
		Model(auction).
		Where("channel_id = ? AND status = ?", channelID, models.AuctionStatusActive).
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get auction by channel: %w", err)
	}
	return auction, nil
}

func (r *auctionRepository) GetActive(ctx context.Context) ([]*models.Auction, error) {
	var auctions []*models.Auction

	err := r.db.NewSelect().
		Model(&auctions).
		Where("status = ?", models.AuctionStatusActive).
		Order("created_at ASC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get active auctions: %w", err)
	}
	return auctions, nil
}

// RecordOffer updates the auction's standing offer and appends the offer row
// in one transaction. Returns sql.ErrNoRows when the auction is no longer
// active so callers can surface not-found instead of silently dropping bids.
func (r *auctionRepository) RecordOffer(ctx context.Context, auctionID int64, userID, userName string, amount float64, at time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.NewUpdate().
		Model((*models.Auction)(nil)).
		Set("current_offer = ?", amount).
		Set("current_bidder_id = ?", userID).
		Set("current_bidder_name = ?", userName).
		Where("id = ? AND status = ?", auctionID, models.AuctionStatusActive).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update auction offer: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	offer := &models.Offer{
		AuctionID: auctionID,
		UserID:    userID,
		UserName:  userName,
		Amount:    amount,
		CreatedAt: at,
	}
	if _, err := tx.NewInsert().Model(offer).Exec(ctx); err != nil {
		return fmt.Errorf("failed to record offer: %w", err)
	}

	return tx.Commit()
}

func (r *auctionRepository) UpdateNotificationID(ctx context.Context, auctionID int64, notificationID string) error {
	_, err := r.db.NewUpdate().
		Model((*models.Auction)(nil)).
		Set("notification_id = ?", notificationID).
		Where("id = ?", auctionID).
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to update notification id: %w", err)
	}
	return nil
}

// Finish flips the auction to finished. The status filter makes the flip
// idempotent; the bool reports whether this call won the transition.
func (r *auctionRepository) Finish(ctx context.Context, auctionID int64, winnerID string, at time.Time) (bool, error) {
	result, err := r.db.NewUpdate().
		Model((*models.Auction)(nil)).
		Set("status = ?", models.AuctionStatusFinished).
		Set("winner_id = ?", winnerID).
		Set("finished_at = ?", at).
		Where("id = ? AND status = ?", auctionID, models.AuctionStatusActive).
		Exec(ctx)

	if err != nil {
		return false, fmt.Errorf("failed to finish auction: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}

func (r *auctionRepository) GetOffers(ctx context.Context, auctionID int64) ([]*models.Offer, error) {
	var offers []*models.Offer
	err := r.db.NewSelect().
		Model(&offers).
		Where("auction_id = ?", auctionID).
		Order("created_at ASC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get offers: %w", err)
	}
	return offers, nil
}
