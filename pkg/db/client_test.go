package db

import (
	"context"
	"testing"

	"github.com/angelmondragon/storefront-cart/pkg/config"
	"github.com/angelmondragon/storefront-cart/pkg/db/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

func TestNewRequiresDSN(t *testing.T) {
	if _, err := New(context.Background(), config.DBConfig{Driver: config.DBDriverSQLite}, nil); err == nil {
		t.Fatal("expected error without DSN")
	}
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), config.DBConfig{Driver: "mysql", DSN: "x"}, nil)
	if err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestSQLiteClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	client, err := New(ctx, config.DBConfig{
		Driver:       config.DBDriverSQLite,
		DSN:          "file:db_client_test?mode=memory&cache=shared",
		MaxOpenConns: 1,
	}, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if err := client.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	conn := client.DB().WithContext(ctx)
	if err := conn.AutoMigrate(&models.CartSnapshot{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	row := models.CartSnapshot{StorageKey: "k", Payload: `{}`, Version: 1, TotalPrice: decimal.RequireFromString("1.50")}
	if err := conn.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	row.Version = 2
	if err := conn.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		t.Fatalf("upsert: %v", err)
	}

	var got models.CartSnapshot
	if err := conn.First(&got, "storage_key = ?", "k").Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.Version != 2 || !got.TotalPrice.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("unexpected row %+v", got)
	}
}
