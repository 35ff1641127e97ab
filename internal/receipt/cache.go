package receipt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "receipt:v1:"

// Cache stores rendered receipts in Redis. A nil *Cache is a valid, always-missing cache.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCache(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{rdb: rdb, ttl: ttl, logger: logger.Named("receipt_cache")}
}

// Key identifies one rendering of a transaction's receipt. Entries are grouped by
// transaction ID so a void can drop them without knowing the code.
func Key(txID, cashier, date, clock string) string {
	return keyPrefix + txID + ":" + strings.Join([]string{cashier, date, clock}, "|")
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return data, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, data []byte) error {
	if c == nil {
		return nil
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Invalidate drops every cached rendering of the transaction's receipt.
func (c *Cache) Invalidate(ctx context.Context, txID string) (int, error) {
	if c == nil {
		return 0, nil
	}
	var keys []string
	iter := c.rdb.Scan(ctx, 0, keyPrefix+txID+":*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("scan %s: %w", txID, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := c.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("del %s: %w", txID, err)
	}
	c.logger.Debug("invalidated", zap.String("transaction", txID), zap.Int64("keys", n))
	return int(n), nil
}
