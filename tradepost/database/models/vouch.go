package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Vouch is one buyer rating for a seller.
type Vouch struct {
	bun.BaseModel `bun:"table:vouches,alias:v"`

	ID          int64     `bun:"id,pk,autoincrement"`
	SellerID    string    `bun:"seller_id,notnull"`
	SellerName  string    `bun:"seller_name,notnull"`
	VoucherID   string    `bun:"voucher_id,notnull"`
	VoucherName string    `bun:"voucher_name,notnull"`
	Rating      float64   `bun:"rating,notnull"`
	Message     string    `bun:"message,nullzero"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
}
