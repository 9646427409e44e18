package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-cart/internal/cart"
	pkgredis "github.com/angelmondragon/storefront-cart/pkg/redis"
)

type redisKV interface {
	GetBytes(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Ping(ctx context.Context) error
	CartKey(storageKey string) string
}

// Redis stores the cart record as a single string value.
type Redis struct {
	client redisKV
	ttl    time.Duration
}

// NewRedis builds a Redis persister. A zero ttl keeps records forever.
func NewRedis(client redisKV, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.GetBytes(ctx, r.client.CartKey(key))
	if errors.Is(err, pkgredis.ErrNil) {
		return nil, cart.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get cart: %w", err)
	}
	return data, nil
}

func (r *Redis) Save(ctx context.Context, key string, data []byte) error {
	if err := r.client.Set(ctx, r.client.CartKey(key), data, r.ttl); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}
