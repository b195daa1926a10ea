package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/tradepost/tradepost-bot/tradepost/database/models"
	"github.com/uptrace/bun"
)

type ServerConfigRepository interface {
	Upsert(ctx context.Context, config *models.ServerConfig) error
	Get(ctx context.Context, guildID string) (*models.ServerConfig, error)
}

type serverConfigRepository struct {
	db *bun.DB
}

func NewServerConfigRepository(db *bun.DB) ServerConfigRepository {
	return &serverConfigRepository{db: db}
}

// Upsert replaces the guild's configuration row wholesale.
func (r *serverConfigRepository) Upsert(ctx context.Context, config *models.ServerConfig) error {
	if config.UpdatedAt.IsZero() {
		config.UpdatedAt = time.Now()
	}

	_, err := r.db.NewInsert().
		Model(config).
		On("CONFLICT (guild_id) DO UPDATE").
		Set("sales_category_id = EXCLUDED.sales_category_id").
		Set("seller_role_id = EXCLUDED.seller_role_id").
		Set("sold_category_id = EXCLUDED.sold_category_id").
		Set("vouch_channel_id = EXCLUDED.vouch_channel_id").
		Set("updated_at = EXCLUDED.updated_at").
		Set("updated_by = EXCLUDED.updated_by").
		Exec(ctx)

	if err != nil {
		return fmt.Errorf("failed to upsert server config: %w", err)
	}
	return nil
}

func (r *serverConfigRepository) Get(ctx context.Context, guildID string) (*models.ServerConfig, error) {
	config := new(models.ServerConfig)
	err := r.db.NewSelect().
		Model(config).
		Where("guild_id = ?", guildID).
		Scan(ctx)

	if err != nil {
		return nil, fmt.Errorf("failed to get server config: %w", err)
	}
	return config, nil
}
