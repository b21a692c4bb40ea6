package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/GoPolymarket/polychat/internal/config"
	"github.com/GoPolymarket/polychat/internal/market"
	"github.com/GoPolymarket/polychat/internal/model"
	"github.com/GoPolymarket/polychat/internal/pkg/apperrors"
	"github.com/GoPolymarket/polychat/internal/pkg/metrics"
	"github.com/shopspring/decimal"
)

type UsageRepo interface {
	GetDailyUsage(ctx context.Context, wallet string) (int, float64, error)
	AddDailyUsage(ctx context.Context, wallet string, orders int, amount float64) error
}

// RiskEngine guards orders the model decides to place.
type RiskEngine struct {
	repo   UsageRepo
	market market.Provider
	cfg    config.RiskConfig
}

func NewRiskEngine(cfg config.RiskConfig, repo UsageRepo, marketSvc market.Provider) *RiskEngine {
	if cfg.StaleBookSeconds <= 0 {
		cfg.StaleBookSeconds = 10
	}
	return &RiskEngine{repo: repo, market: marketSvc, cfg: cfg}
}

func reject(reason, format string, args ...any) error {
	metrics.RiskRejects.WithLabelValues(reason).Inc()
	return apperrors.NewRiskReject(fmt.Sprintf("risk reject: "+format, args...))
}

// CheckOrder runs every pre-trade check. A non-nil error means the order must not be sent.
func (e *RiskEngine) CheckOrder(ctx context.Context, wallet string, req model.OrderRequest) error {
	side := strings.ToUpper(strings.TrimSpace(req.Side))
	if side != "BUY" && side != "SELL" {
		return reject("invalid_side", "side must be BUY or SELL")
	}

	// Fat finger: outcome prices live strictly inside (0, 1)
	if req.Price <= 0 || req.Price >= 1.0 {
		return reject("price_bounds", "price %.4f out of bounds (0-1)", req.Price)
	}
	if req.Size <= 0 {
		return reject("invalid_size", "size must be positive")
	}

	orderVal := req.Notional()
	if e.cfg.MaxOrderValue > 0 && orderVal.GreaterThan(decimal.NewFromFloat(e.cfg.MaxOrderValue)) {
		return reject("max_value", "order value %s exceeds limit %.2f", orderVal.StringFixed(2), e.cfg.MaxOrderValue)
	}

	for _, restrictedID := range e.cfg.BlacklistedTokenIDs {
		if req.TokenID == restrictedID {
			return reject("restricted_market", "market %s is restricted", req.TokenID)
		}
	}

	if err := e.checkSlippage(side, req); err != nil {
		return err
	}

	if e.cfg.MaxDailyValue > 0 || e.cfg.MaxDailyOrders > 0 {
		currentOrders, currentVol, err := e.repo.GetDailyUsage(ctx, wallet)
		if err != nil {
			return fmt.Errorf("risk check failed: %w", err)
		}
		newVol := decimal.NewFromFloat(currentVol).Add(orderVal)
		if e.cfg.MaxDailyValue > 0 && newVol.GreaterThan(decimal.NewFromFloat(e.cfg.MaxDailyValue)) {
			return reject("daily_volume_limit", "daily volume limit exceeded (curr: %.2f, new: %s, max: %.2f)",
				currentVol, orderVal.StringFixed(2), e.cfg.MaxDailyValue)
		}
		if e.cfg.MaxDailyOrders > 0 && currentOrders+1 > e.cfg.MaxDailyOrders {
			return reject("daily_order_limit", "daily order limit exceeded (curr: %d, max: %d)",
				currentOrders, e.cfg.MaxDailyOrders)
		}
	}

	return nil
}

// checkSlippage compares the limit price with the cached book. Without a
// fresh book the check is skipped; the CLOB still enforces crossing rules.
func (e *RiskEngine) checkSlippage(side string, req model.OrderRequest) error {
	if e.cfg.MaxSlippage <= 0 || e.market == nil {
		return nil
	}
	book := e.market.GetBook(req.TokenID)
	if book == nil || !book.Fresh(time.Duration(e.cfg.StaleBookSeconds)*time.Second) {
		return nil
	}

	reqPrice := decimal.NewFromFloat(req.Price)
	slippage := decimal.NewFromFloat(e.cfg.MaxSlippage)
	one := decimal.NewFromInt(1)
	bid, hasBid, ask, hasAsk := book.Best()

	if side == "BUY" && hasAsk {
		maxPrice := ask.Price.Mul(one.Add(slippage))
		if reqPrice.GreaterThan(maxPrice) {
			return reject("slippage", "buy price %.4f deviates too much from best ask %s (limit: %s)",
				req.Price, ask.Price.String(), maxPrice.StringFixed(4))
		}
	}
	if side == "SELL" && hasBid {
		minPrice := bid.Price.Mul(one.Sub(slippage))
		if reqPrice.LessThan(minPrice) {
			return reject("slippage", "sell price %.4f deviates too much from best bid %s (limit: %s)",
				req.Price, bid.Price.String(), minPrice.StringFixed(4))
		}
	}
	return nil
}

// PostOrderHook records usage after a successful order.
func (e *RiskEngine) PostOrderHook(ctx context.Context, wallet string, req model.OrderRequest) error {
	return e.repo.AddDailyUsage(ctx, wallet, 1, req.Notional().InexactFloat64())
}
