package service

import (
	"context"
	"sync"
	"time"
)

// RiskUsageStore tracks per-wallet daily usage in memory.
type RiskUsageStore struct {
	mu          sync.RWMutex
	dailyVolume map[string]float64 // Key: wallet:YYYY-MM-DD
	dailyOrders map[string]int
	now         func() time.Time
}

func NewRiskUsageStore() *RiskUsageStore {
	return &RiskUsageStore{
		dailyVolume: make(map[string]float64),
		dailyOrders: make(map[string]int),
		now:         time.Now,
	}
}

func (s *RiskUsageStore) GetDailyUsage(ctx context.Context, wallet string) (int, float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := s.makeKey(wallet)
	return s.dailyOrders[key], s.dailyVolume[key], nil
}

func (s *RiskUsageStore) AddDailyUsage(ctx context.Context, wallet string, orders int, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.makeKey(wallet)
	s.dailyVolume[key] += amount
	s.dailyOrders[key] += orders
	return nil
}

func (s *RiskUsageStore) makeKey(wallet string) string {
	return wallet + ":" + s.now().UTC().Format("2006-01-02")
}
