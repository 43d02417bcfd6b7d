package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
}

func Ping(ctx context.Context, rdb *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return rdb.Ping(ctx).Err()
}

// DropStock deletes the cached stock of the given products and bumps their
// versions, so a fill that read the store earlier is discarded.
func DropStock(ctx context.Context, rdb *redis.Client, productIDs ...int64) error {
	if len(productIDs) == 0 {
		return nil
	}
	pipe := rdb.TxPipeline()
	for _, id := range productIDs {
		ver := fmt.Sprintf(KeyStockVersion, id)
		pipe.Incr(ctx, ver)
		pipe.Expire(ctx, ver, TTLStockVer)
		pipe.Del(ctx, fmt.Sprintf(KeyStock, id))
	}
	_, err := pipe.Exec(ctx)
	return err
}

// StockVersion returns the current stock cache version, 0 when unset.
func StockVersion(ctx context.Context, rdb *redis.Client, productID int64) (int64, error) {
	v, err := rdb.Get(ctx, fmt.Sprintf(KeyStockVersion, productID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}
