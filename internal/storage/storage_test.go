package storage

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-cart/internal/cart"
	"github.com/angelmondragon/storefront-cart/pkg/db/models"
	pkgredis "github.com/angelmondragon/storefront-cart/pkg/redis"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func sampleProduct(id string) cart.Product {
	return cart.Product{ID: cart.ProductID(id), Name: "Item " + id, Price: decimal.RequireFromString("4.25")}
}

func TestMemoryLoadSave(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()

	_, err := mem.Load(ctx, "k")
	require.ErrorIs(t, err, cart.ErrNotFound)

	payload := []byte(`{"items":[]}`)
	require.NoError(t, mem.Save(ctx, "k", payload))
	payload[0] = 'x'

	got, err := mem.Load(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, `{"items":[]}`, string(got))
	assert.NoError(t, mem.Ping(ctx))
}

type fakeKV struct {
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) GetBytes(_ context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return nil, pkgredis.ErrNil
	}
	return v, nil
}

func (f *fakeKV) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("unexpected value type %T", value)
	}
	f.data[key] = b
	f.ttls[key] = ttl
	return nil
}

func (f *fakeKV) Ping(context.Context) error { return nil }

func (f *fakeKV) CartKey(storageKey string) string { return "sf:cart:" + storageKey }

func TestRedisPersisterNamespacesKeys(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	persister := NewRedis(kv, time.Hour)

	_, err := persister.Load(ctx, "cart-storage")
	require.ErrorIs(t, err, cart.ErrNotFound)

	require.NoError(t, persister.Save(ctx, "cart-storage", []byte("{}")))
	assert.Contains(t, kv.data, "sf:cart:cart-storage")
	assert.Equal(t, time.Hour, kv.ttls["sf:cart:cart-storage"])

	got, err := persister.Load(ctx, "cart-storage")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(got))
}

func TestRedisPersisterWrapsErrors(t *testing.T) {
	kv := newFakeKV()
	kv.getErr = errors.New("i/o timeout")

	_, err := NewRedis(kv, 0).Load(context.Background(), "k")

	require.Error(t, err)
	assert.NotErrorIs(t, err, cart.ErrNotFound)
	assert.Contains(t, err.Error(), "i/o timeout")
}

func newSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.CartSnapshot{}))
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func TestSQLPersisterUpserts(t *testing.T) {
	ctx := context.Background()
	conn := newSQLite(t)
	persister := NewSQL(conn)

	_, err := persister.Load(ctx, "k")
	require.ErrorIs(t, err, cart.ErrNotFound)

	require.NoError(t, persister.Save(ctx, "k", []byte(`{"items":[],"totalItems":0,"totalPrice":"0","version":1}`)))
	require.NoError(t, persister.Save(ctx, "k", []byte(`{"items":[],"totalItems":3,"totalPrice":"12.75","version":2}`)))

	var rows []models.CartSnapshot
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(2), rows[0].Version)
	assert.Equal(t, 3, rows[0].TotalItems)
	assert.True(t, rows[0].TotalPrice.Equal(decimal.RequireFromString("12.75")))

	got, err := persister.Load(ctx, "k")
	require.NoError(t, err)
	assert.Contains(t, string(got), `"version":2`)
	assert.NoError(t, persister.Ping(ctx))
}

func TestSQLPersisterRejectsNonJSON(t *testing.T) {
	err := NewSQL(newSQLite(t)).Save(context.Background(), "k", []byte("not json"))
	require.Error(t, err)
}

func TestStoreOverSQLSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	persister := NewSQL(newSQLite(t))

	first, err := cart.NewStore(ctx, cart.StoreParams{Persister: persister})
	require.NoError(t, err)
	first.AddItem(ctx, sampleProduct("1"), 2)
	first.AddItem(ctx, sampleProduct("2"), 1)

	second, err := cart.NewStore(ctx, cart.StoreParams{Persister: persister})
	require.NoError(t, err)

	snap := second.Snapshot()
	assert.Equal(t, 3, snap.TotalItems)
	assert.True(t, snap.TotalPrice.Equal(decimal.RequireFromString("12.75")))
	assert.Equal(t, first.Snapshot().Version, snap.Version)
}
