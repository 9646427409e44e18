package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartSnapshot is one persisted cart record keyed by storage key. Payload
// holds the serialized snapshot; the other columns are informational.
type CartSnapshot struct {
	StorageKey string          `gorm:"column:storage_key;primaryKey;size:191"`
	Payload    string          `gorm:"column:payload;type:text;not null"`
	Version    uint64          `gorm:"column:version;not null;default:0"`
	TotalItems int             `gorm:"column:total_items;not null;default:0"`
	TotalPrice decimal.Decimal `gorm:"column:total_price;type:numeric(12,2);not null;default:0"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (CartSnapshot) TableName() string {
	return "cart_snapshots"
}
