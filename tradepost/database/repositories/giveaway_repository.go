package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/tradepost/tradepost-bot/tradepost/database/models"
	"github.com/uptrace/bun"
)

type GiveawayRepository interface {
	Create(ctx context.Context, giveaway *models.Giveaway) error
	GetByMessageID(ctx context.Context, messageID string) (*models.Giveaway, error)
	GetByID(ctx context.Context, id int64) (*models.Giveaway, error)
	GetActive(ctx context.Context) ([]*models.Giveaway, error)
	AddParticipant(ctx context.Context, giveawayID int64, userID, userName string, at time.Time) (bool, error)
	RemoveParticipant(ctx context.Context, giveawayID int64, userID string) (bool, error)
	CountParticipants(ctx context.Context, giveawayID int64) (int, error)
	IsParticipating(ctx context.Context, giveawayID int64, userID string) (bool, error)
	GetParticipants(ctx context.Context, giveawayID int64) ([]*models.GiveawayParticipant, error)
	Finish(ctx context.Context, giveawayID int64, at time.Time) (bool, error)
}

type giveawayRepository struct {
	db *bun.DB
}

func NewGiveawayRepository(db *bun.DB) GiveawayRepository {
	return &giveawayRepository{db: db}
}

func (r *giveawayRepository) Create(ctx context.Context, giveaway *models.Giveaway) error {
	if giveaway.CreatedAt.IsZero() {
		giveaway.CreatedAt = time.Now()
	}
	giveaway.Status = models.GiveawayStatusActive

	if _, err := r.db.NewInsert().Model(giveaway).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create giveaway: %w", err)
	}
	return nil
}

func (r *giveawayRepository) GetByMessageID(ctx context.Context, messageID string) (*models.Giveaway, error) {
	giveaway := new(models.Giveaway)
	err := r.db.NewSelect().
		Model(giveaway).
		Where("message_id = ? AND status = ?", messageID, models.GiveawayStatusActive).
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get giveaway by message: %w", err)
	}
	return giveaway, nil
}

func (r *giveawayRepository) GetByID(ctx context.Context, id int64) (*models.Giveaway, error) {
	giveaway := new(models.Giveaway)
	err := r.db.NewSelect().
		Model(giveaway).
		Where("id = ?", id).
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get giveaway: %w", err)
	}
	return giveaway, nil
}

func (r *giveawayRepository) GetActive(ctx context.Context) ([]*models.Giveaway, error) {
	var giveaways []*models.Giveaway

	err := r.db.NewSelect().
		Model(&giveaways).
		Where("status = ?", models.GiveawayStatusActive).
		Order("end_time ASC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get active giveaways: %w", err)
	}
	return giveaways, nil
}

// AddParticipant inserts the entry row. The (giveaway_id, user_id) unique
// pair absorbs duplicate joins; false means the user was already in.
func (r *giveawayRepository) AddParticipant(ctx context.Context, giveawayID int64, userID, userName string, at time.Time) (bool, error) {
	participant := &models.GiveawayParticipant{
		GiveawayID: giveawayID,
		UserID:     userID,
		UserName:   userName,
		JoinedAt:   at,
	}

	result, err := r.db.NewInsert().
		Model(participant).
		On("CONFLICT (giveaway_id, user_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to add participant: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}

func (r *giveawayRepository) RemoveParticipant(ctx context.Context, giveawayID int64, userID string) (bool, error) {
	result, err := r.db.NewDelete().
		Model((*models.GiveawayParticipant)(nil)).
		Where("giveaway_id = ? AND user_id = ?", giveawayID, userID).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to remove participant: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}

func (r *giveawayRepository) CountParticipants(ctx context.Context, giveawayID int64) (int, error) {
	count, err := r.db.NewSelect().
		Model((*models.GiveawayParticipant)(nil)).
		Where("giveaway_id = ?", giveawayID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}
	return count, nil
}

func (r *giveawayRepository) IsParticipating(ctx context.Context, giveawayID int64, userID string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*models.GiveawayParticipant)(nil)).
		Where("giveaway_id = ? AND user_id = ?", giveawayID, userID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check participation: %w", err)
	}
	return exists, nil
}

func (r *giveawayRepository) GetParticipants(ctx context.Context, giveawayID int64) ([]*models.GiveawayParticipant, error) {
	var participants []*models.GiveawayParticipant
	err := r.db.NewSelect().
		Model(&participants).
		Where("giveaway_id = ?", giveawayID).
		Order("joined_at ASC").
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	return participants, nil
}

// Finish flips the giveaway to finished. Idempotent via the status filter;
// the bool reports whether this call won the transition.
func (r *giveawayRepository) Finish(ctx context.Context, giveawayID int64, at time.Time) (bool, error) {
	result, err := r.db.NewUpdate().
		Model((*models.Giveaway)(nil)).
		Set("status = ?", models.GiveawayStatusFinished).
		Set("finished_at = ?", at).
		Where("id = ? AND status = ?", giveawayID, models.GiveawayStatusActive).
		Exec(ctx)

	if err != nil {
		return false, fmt.Errorf("failed to finish giveaway: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}
