package repository

import (
	"testing"
	"time"

	"github.com/GoPolymarket/polychat/internal/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageKeysAreScopedByWalletAndDay(t *testing.T) {
	repo := NewRedisUsageRepo(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}))
	repo.now = func() time.Time { return time.Date(2026, 5, 2, 23, 30, 0, 0, time.FixedZone("x", -3*3600)) }

	vol, count := repo.keys("0xabc")
	// 23:30 at UTC-3 is already the next UTC day
	assert.Equal(t, "polychat:usage:0xabc:2026-05-03:volume", vol)
	assert.Equal(t, "polychat:usage:0xabc:2026-05-03:count", count)
}

func TestNewRedisClientRequiresAddr(t *testing.T) {
	_, err := NewRedisClient(&config.Config{})
	require.Error(t, err)
}

func TestNewDBRequiresDSN(t *testing.T) {
	_, err := NewDB(&config.Config{})
	require.Error(t, err)
}
