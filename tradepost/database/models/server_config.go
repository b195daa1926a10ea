package models

import (
	"time"

	"github.com/uptrace/bun"
)

// ServerConfig is the per-guild singleton holding the handles the bot needs
// to operate inside a community. Updates replace the whole row.
type ServerConfig struct {
	bun.BaseModel `bun:"table:server_config,alias:sc"`

	ID              int64     `bun:"id,pk,autoincrement"`
	GuildID         string    `bun:"guild_id,notnull,unique"`
	SalesCategoryID string    `bun:"sales_category_id,nullzero"`
	SellerRoleID    string    `bun:"seller_role_id,nullzero"`
	SoldCategoryID  string    `bun:"sold_category_id,nullzero"`
	VouchChannelID  string    `bun:"vouch_channel_id,nullzero"`
	UpdatedAt       time.Time `bun:"updated_at,notnull"`
	UpdatedBy       string    `bun:"updated_by,notnull"`
}
