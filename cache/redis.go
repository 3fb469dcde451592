package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"davietech/config"
	"davietech/model"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const (
	ordersKey     = "orders:all"
	ordersTTL     = 5 * time.Minute
	receiptPrefix = "mpesa:receipt:"
	receiptTTL    = 72 * time.Hour
)

// Connect opens and pings a redis client.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}
	return rdb, nil
}

// Store wraps the keys this service owns.
type Store struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Orders returns the cached order list, if any.
func (s *Store) Orders(ctx context.Context) ([]model.Order, bool) {
	raw, err := s.rdb.Get(ctx, ordersKey).Bytes()
	if err != nil {
		return nil, false
	}
	var list []model.Order
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, false
	}
	return list, true
}

func (s *Store) SetOrders(ctx context.Context, orders []model.Order) error {
	data, err := json.Marshal(orders)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, ordersKey, data, ordersTTL).Err()
}

func (s *Store) InvalidateOrders(ctx context.Context) error {
	return s.rdb.Del(ctx, ordersKey).Err()
}

// MarkReceipt records a provider receipt number and reports whether this is
// the first time it was seen.
func (s *Store) MarkReceipt(ctx context.Context, receipt string) (bool, error) {
	if receipt == "" {
		return false, errors.New("empty receipt number")
	}
	return s.rdb.SetNX(ctx, receiptPrefix+receipt, 1, receiptTTL).Result()
}

// ForgetReceipt releases a receipt so a provider retry can be processed again.
func (s *Store) ForgetReceipt(ctx context.Context, receipt string) error {
	return s.rdb.Del(ctx, receiptPrefix+receipt).Err()
}
