package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/smartcart/pkg/config"
	"github.com/go-redis/redis/v8"
)

type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
	}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return r.client.Set(ctx, key, value, expiration).Err()
}

func (r *RedisRepository) Get(ctx context.Context, key string) (string, error) {
	return r.client.Get(ctx, key).Result()
}

func (r *RedisRepository) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// CartSummary is the cached per-session view written after every totals
// recompute. UI clients poll it instead of hitting MySQL on each tick.
type CartSummary struct {
	CartID      uint    `json:"cart_id"`
	SessionID   string  `json:"session_id"`
	Status      string  `json:"status"`
	FinalAmount float64 `json:"final_amount"`
	ItemCount   int     `json:"item_count"`
	HasAlert    bool    `json:"has_alert"`
}

func (r *RedisRepository) CacheCartSummary(ctx context.Context, summary *CartSummary) error {
	key := fmt.Sprintf("cart:session:%s", summary.SessionID)
	return r.SetJSON(ctx, key, summary, 30*time.Minute)
}

func (r *RedisRepository) GetCartSummary(ctx context.Context, sessionID string) (*CartSummary, error) {
	key := fmt.Sprintf("cart:session:%s", sessionID)
	var summary CartSummary
	if err := r.GetJSON(ctx, key, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (r *RedisRepository) InvalidateCartSummary(ctx context.Context, sessionID string) error {
	return r.Del(ctx, fmt.Sprintf("cart:session:%s", sessionID))
}
