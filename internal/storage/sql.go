package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/pkg/db/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQL persists cart records in the cart_snapshots table.
type SQL struct {
	conn *gorm.DB
}

func NewSQL(conn *gorm.DB) *SQL {
	return &SQL{conn: conn}
}

func (s *SQL) Load(ctx context.Context, key string) ([]byte, error) {
	var row models.CartSnapshot
	err := s.conn.WithContext(ctx).Where("storage_key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, cart.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load cart snapshot: %w", err)
	}
	return []byte(row.Payload), nil
}

// Save upserts the record. The summary columns are copied from the payload
// for ad-hoc querying; Load only reads the payload.
func (s *SQL) Save(ctx context.Context, key string, data []byte) error {
	var summary struct {
		Version    uint64          `json:"version"`
		TotalItems int             `json:"totalItems"`
		TotalPrice decimal.Decimal `json:"totalPrice"`
	}
	if err := json.Unmarshal(data, &summary); err != nil {
		return fmt.Errorf("read cart summary: %w", err)
	}
	row := models.CartSnapshot{
		StorageKey: key,
		Payload:    string(data),
		Version:    summary.Version,
		TotalItems: summary.TotalItems,
		TotalPrice: summary.TotalPrice,
	}
	err := s.conn.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "storage_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "version", "total_items", "total_price", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("save cart snapshot: %w", err)
	}
	return nil
}

func (s *SQL) Ping(ctx context.Context) error {
	sqlDB, err := s.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
