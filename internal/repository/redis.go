package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/GoPolymarket/polychat/internal/config"
	"github.com/redis/go-redis/v9"
)

// RedisUsageRepo keeps the risk engine's daily counters in Redis so limits
// survive restarts and are shared between replicas.
type RedisUsageRepo struct {
	Client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisClient(cfg *config.Config) (*redis.Client, error) {
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return rdb, nil
}

func NewRedisUsageRepo(client *redis.Client) *RedisUsageRepo {
	return &RedisUsageRepo{
		Client: client,
		prefix: "polychat:usage",
		now:    time.Now,
	}
}

func (r *RedisUsageRepo) GetDailyUsage(ctx context.Context, wallet string) (int, float64, error) {
	keyVol, keyCount := r.keys(wallet)

	pipe := r.Client.Pipeline()
	volCmd := pipe.Get(ctx, keyVol)
	countCmd := pipe.Get(ctx, keyCount)
	_, err := pipe.Exec(ctx)

	if err != nil && err != redis.Nil {
		return 0, 0, err
	}

	vol, _ := volCmd.Float64()
	count, _ := countCmd.Int()

	return count, vol, nil
}

func (r *RedisUsageRepo) AddDailyUsage(ctx context.Context, wallet string, orders int, amount float64) error {
	keyVol, keyCount := r.keys(wallet)

	pipe := r.Client.Pipeline()
	pipe.IncrByFloat(ctx, keyVol, amount)
	pipe.IncrBy(ctx, keyCount, int64(orders))

	// Two days covers the UTC day boundary.
	pipe.Expire(ctx, keyVol, 48*time.Hour)
	pipe.Expire(ctx, keyCount, 48*time.Hour)

	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisUsageRepo) keys(wallet string) (string, string) {
	today := r.now().UTC().Format("2006-01-02")
	base := fmt.Sprintf("%s:%s:%s", r.prefix, wallet, today)
	return base + ":volume", base + ":count"
}
