package model

import "github.com/shopspring/decimal"

// OrderRequest is what the order tool hands to the trading service.
type OrderRequest struct {
	TokenID    string  `json:"token_id" jsonschema:"required" jsonschema_description:"CLOB token id of the outcome to trade."`
	Price      float64 `json:"price" jsonschema:"required" jsonschema_description:"Limit price between 0 and 1 (USDC per share)."`
	Size       float64 `json:"size" jsonschema:"required" jsonschema_description:"Number of shares."`
	Side       string  `json:"side" jsonschema:"required,enum=BUY,enum=SELL"`
	OrderType  string  `json:"order_type,omitempty" jsonschema:"enum=GTC,enum=GTD,enum=FOK,enum=FAK" jsonschema_description:"Time in force, GTC when omitted."`
	Expiration int64   `json:"expiration,omitempty" jsonschema_description:"Unix seconds, only for GTD orders."`
}

// Notional is price*size in USDC.
func (r OrderRequest) Notional() decimal.Decimal {
	return decimal.NewFromFloat(r.Price).Mul(decimal.NewFromFloat(r.Size))
}

type OrderResult struct {
	Maker    string `json:"maker"`
	TokenID  string `json:"token_id"`
	Side     string `json:"side"`
	Notional string `json:"notional_usdc"`
	Raw      any    `json:"response,omitempty"`
}
