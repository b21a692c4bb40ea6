package service

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/GoPolymarket/polychat/internal/market"
	"github.com/GoPolymarket/polychat/internal/model"
	"github.com/GoPolymarket/polychat/internal/pkg/apperrors"
	"github.com/GoPolymarket/polychat/internal/pkg/logger"
	"github.com/GoPolymarket/polychat/internal/pkg/metrics"
	"github.com/GoPolymarket/polychat/internal/signer"
	"github.com/GoPolymarket/polymarket-go-sdk"
	"github.com/GoPolymarket/polymarket-go-sdk/pkg/auth"
	"github.com/GoPolymarket/polymarket-go-sdk/pkg/clob"
	"github.com/GoPolymarket/polymarket-go-sdk/pkg/clob/clobtypes"
	"github.com/GoPolymarket/polymarket-go-sdk/pkg/gamma"
	sdktypes "github.com/GoPolymarket/polymarket-go-sdk/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Credentials are the Polymarket L2 API credentials.
type Credentials struct {
	Key        string
	Secret     string
	Passphrase string
}

func (c Credentials) complete() bool {
	return c.Key != "" && c.Secret != "" && c.Passphrase != ""
}

type NonceSource interface {
	ExchangeNonce(ctx context.Context, addr common.Address) (*big.Int, error)
	InvalidateExchangeNonce(addr common.Address)
}

// TradingService holds the process-wide pieces every trading session shares.
type TradingService struct {
	identity   *signer.Signer
	nonces     NonceSource
	risk       *RiskEngine
	market     market.Provider
	sdkCfg     polymarket.Config
	httpClient *http.Client
	staleAfter time.Duration
}

type TradingOptions struct {
	Identity    *signer.Signer
	Nonces      NonceSource
	Risk        *RiskEngine
	Market      market.Provider
	GammaURL    string
	HTTPClient  *http.Client
	HTTPTimeout time.Duration
	StaleAfter  time.Duration
}

func NewTradingService(opts TradingOptions) *TradingService {
	if opts.HTTPTimeout <= 0 {
		opts.HTTPTimeout = 10 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = newPooledHTTPClient(opts.HTTPTimeout)
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 10 * time.Second
	}
	return &TradingService{
		identity:   opts.Identity,
		nonces:     opts.Nonces,
		risk:       opts.Risk,
		market:     opts.Market,
		sdkCfg:     sdkConfig(opts.GammaURL),
		httpClient: opts.HTTPClient,
		staleAfter: opts.StaleAfter,
	}
}

func newPooledHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
		Timeout: timeout,
	}
}

// Session binds the identity and the L2 credentials into an authenticated
// SDK client. Sessions are request scoped.
func (s *TradingService) Session(creds Credentials) (*TradingSession, error) {
	if s.identity == nil {
		return nil, apperrors.NewUpstreamTool("trading session", fmt.Errorf("signing identity not initialized"))
	}
	if !creds.complete() {
		return nil, apperrors.NewUpstreamTool("trading session", fmt.Errorf("missing polymarket api credentials"))
	}
	apiKey := &auth.APIKey{
		Key:        creds.Key,
		Secret:     creds.Secret,
		Passphrase: creds.Passphrase,
	}
	client := polymarket.NewClient(
		polymarket.WithConfig(s.sdkCfg),
		polymarket.WithUseServerTime(true),
		polymarket.WithHTTPClient(s.httpClient),
	).WithAuth(s.identity.AuthSigner(), apiKey)

	return &TradingSession{svc: s, client: client, apiKey: apiKey}, nil
}

// OrderFilter narrows an open order listing. Empty fields match everything.
type OrderFilter struct {
	Market  string
	TokenID string
	Cursor  string
}

type TradingSession struct {
	svc    *TradingService
	client *polymarket.Client
	apiKey *auth.APIKey
}

func (t *TradingSession) Events(ctx context.Context, limit int) ([]gamma.Event, error) {
	return listEvents(ctx, t.client.Gamma, limit)
}

func (t *TradingSession) Market(ctx context.Context, idOrSlug string) (*gamma.Market, error) {
	return lookupMarket(ctx, t.client.Gamma, idOrSlug)
}

// BookView is the order book summary handed to the model.
type BookView struct {
	TokenID string `json:"token_id"`
	BestBid string `json:"best_bid,omitempty"`
	BestAsk string `json:"best_ask,omitempty"`
	Spread  string `json:"spread,omitempty"`
	Source  string `json:"source"` // live | rest
	Levels  any    `json:"book,omitempty"`
}

// OrderBook serves a fresh websocket book when one is cached, otherwise asks
// the CLOB and subscribes so the next lookup is live.
func (t *TradingSession) OrderBook(ctx context.Context, tokenID string) (*BookView, error) {
	if tokenID == "" {
		return nil, fmt.Errorf("token_id is required")
	}
	if m := t.svc.market; m != nil {
		if book := m.GetBook(tokenID); book != nil && book.Fresh(t.svc.staleAfter) {
			return liveBookView(book), nil
		}
		m.Subscribe([]string{tokenID})
	}

	book, err := t.client.CLOB.OrderBook(ctx, &clobtypes.BookRequest{TokenID: tokenID})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order book: %w", err)
	}
	view := &BookView{TokenID: tokenID, Source: "rest", Levels: book}

	var bestBid, bestAsk *decimal.Decimal
	for _, b := range book.Bids {
		if p, err := decimal.NewFromString(b.Price); err == nil && (bestBid == nil || p.GreaterThan(*bestBid)) {
			bestBid = &p
		}
	}
	for _, a := range book.Asks {
		if p, err := decimal.NewFromString(a.Price); err == nil && (bestAsk == nil || p.LessThan(*bestAsk)) {
			bestAsk = &p
		}
	}
	fillTop(view, bestBid, bestAsk)
	return view, nil
}

func liveBookView(book *market.Orderbook) *BookView {
	bids, asks := book.GetCopy()
	view := &BookView{
		TokenID: book.TokenID,
		Source:  "live",
		Levels:  map[string][]market.Level{"bids": topN(bids, 10), "asks": topN(asks, 10)},
	}
	var bestBid, bestAsk *decimal.Decimal
	if len(bids) > 0 {
		bestBid = &bids[0].Price
	}
	if len(asks) > 0 {
		bestAsk = &asks[0].Price
	}
	fillTop(view, bestBid, bestAsk)
	return view
}

func topN(levels []market.Level, n int) []market.Level {
	if len(levels) > n {
		return levels[:n]
	}
	return levels
}

func fillTop(view *BookView, bid, ask *decimal.Decimal) {
	if bid != nil {
		view.BestBid = bid.String()
	}
	if ask != nil {
		view.BestAsk = ask.String()
	}
	if bid != nil && ask != nil {
		view.Spread = ask.Sub(*bid).String()
	}
}

// PlaceOrder risk-checks, builds, signs and posts a limit order.
func (t *TradingSession) PlaceOrder(ctx context.Context, req model.OrderRequest) (*model.OrderResult, error) {
	req.Side = strings.ToUpper(strings.TrimSpace(req.Side))
	wallet := t.svc.identity.Address().Hex()

	if t.svc.risk != nil {
		if err := t.svc.risk.CheckOrder(ctx, wallet, req); err != nil {
			metrics.OrdersTotal.WithLabelValues("rejected", req.Side).Inc()
			return nil, err
		}
	}

	authSigner := t.svc.identity.AuthSigner()
	builder := clob.NewOrderBuilder(t.client.CLOB, authSigner).
		TokenID(req.TokenID).
		Price(req.Price).
		Size(req.Size).
		Side(req.Side).
		OrderType(parseOrderType(req.OrderType))
	if req.Expiration > 0 {
		builder.ExpirationUnix(req.Expiration)
	}
	signable, err := builder.BuildSignableWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build order: %w", err)
	}

	if t.svc.nonces != nil {
		nonce, err := t.svc.nonces.ExchangeNonce(ctx, signable.Order.Maker)
		if err != nil {
			logger.Warn("exchange nonce lookup failed, using builder nonce", "error", err)
		} else {
			signable.Order.Nonce = sdktypes.U256{Int: nonce}
		}
	}

	signature, err := t.svc.identity.SignOrder(toSignerOrder(signable.Order))
	if err != nil {
		return nil, fmt.Errorf("signing failed: %w", err)
	}

	signed := &clobtypes.SignedOrder{
		Order:     *signable.Order,
		Signature: signature,
		Owner:     t.apiKey.Key,
		OrderType: signable.OrderType,
		PostOnly:  signable.PostOnly,
	}
	resp, err := t.client.CLOB.PostOrder(ctx, signed)
	if err != nil {
		metrics.OrdersTotal.WithLabelValues("failed", req.Side).Inc()
		if strings.Contains(strings.ToLower(err.Error()), "nonce") && t.svc.nonces != nil {
			t.svc.nonces.InvalidateExchangeNonce(signable.Order.Maker)
		}
		return nil, fmt.Errorf("polymarket api error: %w", err)
	}
	metrics.OrdersTotal.WithLabelValues("accepted", req.Side).Inc()

	if t.svc.risk != nil {
		if err := t.svc.risk.PostOrderHook(ctx, wallet, req); err != nil {
			logger.Error("failed to record order usage", "error", err)
		}
	}

	return &model.OrderResult{
		Maker:    signable.Order.Maker.Hex(),
		TokenID:  req.TokenID,
		Side:     req.Side,
		Notional: req.Notional().StringFixed(2),
		Raw:      resp,
	}, nil
}

// OpenOrders lists the wallet's live orders, optionally for one market or token.
func (t *TradingSession) OpenOrders(ctx context.Context, filter OrderFilter) (*clobtypes.OrdersResponse, error) {
	resp, err := t.client.CLOB.Orders(ctx, &clobtypes.OrdersRequest{
		Market:  filter.Market,
		AssetID: filter.TokenID,
		Cursor:  filter.Cursor,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list open orders: %w", err)
	}
	if resp.Data == nil {
		resp.Data = []clobtypes.OrderResponse{}
	}
	return &resp, nil
}

func (t *TradingSession) Order(ctx context.Context, orderID string) (*clobtypes.OrderResponse, error) {
	if orderID == "" {
		return nil, fmt.Errorf("order id is required")
	}
	resp, err := t.client.CLOB.Order(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order: %w", err)
	}
	return &resp, nil
}

func (t *TradingSession) CancelOrder(ctx context.Context, orderID string) (any, error) {
	if orderID == "" {
		return nil, fmt.Errorf("order id is required")
	}
	resp, err := t.client.CLOB.CancelOrder(ctx, &clobtypes.CancelOrderRequest{OrderID: orderID})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}
	return resp, nil
}

func (t *TradingSession) CancelAll(ctx context.Context) (any, error) {
	resp, err := t.client.CLOB.CancelAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel all orders: %w", err)
	}
	if t.svc.nonces != nil {
		t.svc.nonces.InvalidateExchangeNonce(t.svc.identity.Address())
	}
	return resp, nil
}

func toSignerOrder(o *clobtypes.Order) *signer.Order {
	side := signer.SideBuy
	if strings.ToUpper(o.Side) == "SELL" {
		side = signer.SideSell
	}

	sigType := uint8(0)
	if o.SignatureType != nil {
		sigType = uint8(*o.SignatureType)
	}

	return &signer.Order{
		Salt:          o.Salt.Int,
		Maker:         o.Maker,
		Signer:        o.Signer,
		Taker:         o.Taker,
		TokenID:       o.TokenID.Int,
		MakerAmount:   o.MakerAmount.BigInt(),
		TakerAmount:   o.TakerAmount.BigInt(),
		Expiration:    o.Expiration.Int,
		Nonce:         o.Nonce.Int,
		FeeRateBps:    o.FeeRateBps.BigInt(),
		Side:          side,
		SignatureType: sigType,
	}
}

func parseOrderType(raw string) clobtypes.OrderType {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(clobtypes.OrderTypeGTD):
		return clobtypes.OrderTypeGTD
	case string(clobtypes.OrderTypeFAK):
		return clobtypes.OrderTypeFAK
	case string(clobtypes.OrderTypeFOK):
		return clobtypes.OrderTypeFOK
	default:
		return clobtypes.OrderTypeGTC
	}
}
