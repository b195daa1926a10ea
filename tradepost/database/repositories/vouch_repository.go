package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/tradepost/tradepost-bot/tradepost/database/models"
	"github.com/uptrace/bun"
)

// VouchStats aggregates ratings either globally or for one seller.
type VouchStats struct {
	Count         int     `bun:"count"`
	AverageRating float64 `bun:"average_rating"`
}

type VouchRepository interface {
	Create(ctx context.Context, vouch *models.Vouch) error
	GlobalStats(ctx context.Context) (*VouchStats, error)
	SellerStats(ctx context.Context, sellerName string) (*VouchStats, error)
	GetBySeller(ctx context.Context, sellerName string, limit int) ([]*models.Vouch, error)
	ListSellers(ctx context.Context) ([]string, error)
}

type vouchRepository struct {
	db *bun.DB
}

func NewVouchRepository(db *bun.DB) VouchRepository {
	return &vouchRepository{db: db}
}

func (r *vouchRepository) Create(ctx context.Context, vouch *models.Vouch) error {
	if vouch.CreatedAt.IsZero() {
		vouch.CreatedAt = time.Now()
	}

	if _, err := r.db.NewInsert().Model(vouch).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create vouch: %w", err)
	}
	return nil
}

func (r *vouchRepository) GlobalStats(ctx context.Context) (*VouchStats, error) {
	stats := new(VouchStats)
	err := r.db.NewSelect().
		Model((*models.Vouch)(nil)).
		ColumnExpr("count(*) AS count").
		ColumnExpr("coalesce(avg(rating), 0) AS average_rating").
		Scan(ctx, stats)

	if err != nil {
		return nil, fmt.Errorf("failed to get vouch stats: %w", err)
	}
	return stats, nil
}

func (r *vouchRepository) SellerStats(ctx context.Context, sellerName string) (*VouchStats, error) {
	stats := new(VouchStats)
	err := r.db.NewSelect().
		Model((*models.Vouch)(nil)).
		ColumnExpr("count(*) AS count").
		ColumnExpr("coalesce(avg(rating), 0) AS average_rating").
		Where("seller_name = ?", sellerName).
		Scan(ctx, stats)

	if err != nil {
		return nil, fmt.Errorf("failed to get seller vouch stats: %w", err)
	}
	return stats, nil
}

func (r *vouchRepository) GetBySeller(ctx context.Context, sellerName string, limit int) ([]*models.Vouch, error) {
	var vouches []*models.Vouch
	q := r.db.NewSelect().
		Model(&vouches).
		Where("seller_name = ?", sellerName).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to get seller vouches: %w", err)
	}
	return vouches, nil
}

// ListSellers returns distinct seller display names, used for fuzzy lookup.
func (r *vouchRepository) ListSellers(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.NewSelect().
		Model((*models.Vouch)(nil)).
		ColumnExpr("DISTINCT seller_name").
		Order("seller_name ASC").
		Scan(ctx, &names)

	if err != nil {
		return nil, fmt.Errorf("failed to list sellers: %w", err)
	}
	return names, nil
}
