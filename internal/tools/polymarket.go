package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/GoPolymarket/polychat/internal/model"
	"github.com/GoPolymarket/polychat/internal/service"
	"github.com/GoPolymarket/polymarket-go-sdk/pkg/clob/clobtypes"
	"github.com/GoPolymarket/polymarket-go-sdk/pkg/gamma"
)

// Trading is the authenticated Polymarket session the tools drive.
type Trading interface {
	Events(ctx context.Context, limit int) ([]gamma.Event, error)
	Market(ctx context.Context, idOrSlug string) (*gamma.Market, error)
	OrderBook(ctx context.Context, tokenID string) (*service.BookView, error)
	OpenOrders(ctx context.Context, filter service.OrderFilter) (*clobtypes.OrdersResponse, error)
	Order(ctx context.Context, orderID string) (*clobtypes.OrderResponse, error)
	PlaceOrder(ctx context.Context, req model.OrderRequest) (*model.OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) (any, error)
	CancelAll(ctx context.Context) (any, error)
}

type EventsInput struct {
	Limit int `json:"limit,omitempty" jsonschema_description:"Number of events to return, at most 50 (default 10)."`
}

type MarketInput struct {
	MarketID string `json:"market_id" jsonschema_description:"Gamma market id or market slug."`
}

type TokenInput struct {
	TokenID string `json:"token_id" jsonschema_description:"CLOB token id of an outcome."`
}

type OpenOrdersInput struct {
	Market  string `json:"market,omitempty" jsonschema_description:"Condition id of a market to filter by."`
	TokenID string `json:"token_id,omitempty" jsonschema_description:"CLOB token id to filter by."`
	Cursor  string `json:"cursor,omitempty" jsonschema_description:"Pagination cursor from a previous call."`
}

type OrderInput struct {
	OrderID string `json:"order_id" jsonschema_description:"Id of the order."`
}

type CancelInput struct {
	OrderID string `json:"order_id" jsonschema_description:"Id of the open order to cancel."`
}

// PolymarketTools exposes discovery and trading on one session.
func PolymarketTools(t Trading) []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "get_polymarket_events",
			Description: "List active Polymarket events ordered by 24h volume, with their markets and outcome token ids.",
			InputSchema: GenerateSchema[EventsInput](),
			Function: func(ctx context.Context, input json.RawMessage) (string, error) {
				var in EventsInput
				if err := decode(input, &in); err != nil {
					return "", err
				}
				events, err := t.Events(ctx, in.Limit)
				if err != nil {
					return "", err
				}
				return jsonResult(events)
			},
		},
		{
			Name:        "get_polymarket_market_info",
			Description: "Get details of a single Polymarket market, including outcome prices and CLOB token ids.",
			InputSchema: GenerateSchema[MarketInput](),
			Function: func(ctx context.Context, input json.RawMessage) (string, error) {
				var in MarketInput
				if err := decode(input, &in); err != nil {
					return "", err
				}
				m, err := t.Market(ctx, in.MarketID)
				if err != nil {
					return "", err
				}
				return jsonResult(m)
			},
		},
		{
			Name:        "get_polymarket_orderbook",
			Description: "Get the order book of an outcome token with best bid, best ask and spread.",
			InputSchema: GenerateSchema[TokenInput](),
			Function: func(ctx context.Context, input json.RawMessage) (string, error) {
				var in TokenInput
				if err := decode(input, &in); err != nil {
					return "", err
				}
				book, err := t.OrderBook(ctx, in.TokenID)
				if err != nil {
					return "", err
				}
				return jsonResult(book)
			},
		},
		{
			Name:        "create_order_on_polymarket",
			Description: "Place a limit order on Polymarket. Price is in USDC per share between 0 and 1. Orders are subject to risk limits.",
			InputSchema: GenerateSchema[model.OrderRequest](),
			Function: func(ctx context.Context, input json.RawMessage) (string, error) {
				var in model.OrderRequest
				if err := decode(input, &in); err != nil {
					return "", err
				}
				if in.TokenID == "" {
					return "", fmt.Errorf("token_id is required")
				}
				res, err := t.PlaceOrder(ctx, in)
				if err != nil {
					return "", err
				}
				return jsonResult(res)
			},
		},
		{
			Name:        "get_active_polymarket_orders",
			Description: "List the wallet's open Polymarket orders, optionally filtered by market or token.",
			InputSchema: GenerateSchema[OpenOrdersInput](),
			Function: func(ctx context.Context, input json.RawMessage) (string, error) {
				var in OpenOrdersInput
				if err := decode(input, &in); err != nil {
					return "", err
				}
				orders, err := t.OpenOrders(ctx, service.OrderFilter{Market: in.Market, TokenID: in.TokenID, Cursor: in.Cursor})
				if err != nil {
					return "", err
				}
				return jsonResult(orders)
			},
		},
		{
			Name:        "get_polymarket_order",
			Description: "Get one Polymarket order of the wallet by id.",
			InputSchema: GenerateSchema[OrderInput](),
			Function: func(ctx context.Context, input json.RawMessage) (string, error) {
				var in OrderInput
				if err := decode(input, &in); err != nil {
					return "", err
				}
				if in.OrderID == "" {
					return "", fmt.Errorf("order_id is required")
				}
				order, err := t.Order(ctx, in.OrderID)
				if err != nil {
					return "", err
				}
				return jsonResult(order)
			},
		},
		{
			Name:        "cancel_polymarket_order",
			Description: "Cancel one open Polymarket order by id.",
			InputSchema: GenerateSchema[CancelInput](),
			Function: func(ctx context.Context, input json.RawMessage) (string, error) {
				var in CancelInput
				if err := decode(input, &in); err != nil {
					return "", err
				}
				res, err := t.CancelOrder(ctx, in.OrderID)
				if err != nil {
					return "", err
				}
				return jsonResult(res)
			},
		},
		{
			Name:        "cancel_all_polymarket_orders",
			Description: "Cancel every open Polymarket order of the wallet.",
			InputSchema: GenerateSchema[noInput](),
			Function: func(ctx context.Context, _ json.RawMessage) (string, error) {
				res, err := t.CancelAll(ctx)
				if err != nil {
					return "", err
				}
				return jsonResult(res)
			},
		},
	}
}
