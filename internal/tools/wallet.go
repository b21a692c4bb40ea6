package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/GoPolymarket/polychat/internal/chain"
	"github.com/ethereum/go-ethereum/common"
)

// Identity is the signing wallet the tools act as.
type Identity interface {
	Address() common.Address
	ChainID() int64
	SignMessage(msg []byte) (string, error)
}

type ChainReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
	NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, uint8, error)
}

type BalanceInput struct {
	Address string `json:"address,omitempty" jsonschema_description:"Wallet address to inspect. Defaults to the agent's own wallet."`
	Token   string `json:"token,omitempty" jsonschema_description:"ERC-20 contract address, or 'usdc'. Omit for the native POL balance."`
}

type SignMessageInput struct {
	Message string `json:"message" jsonschema_description:"UTF-8 text to sign with EIP-191 personal_sign."`
}

type noInput struct{}

type balanceResult struct {
	Address  string `json:"address"`
	Token    string `json:"token"`
	Balance  string `json:"balance"`
	Raw      string `json:"raw"`
	Decimals uint8  `json:"decimals"`
}

// WalletTools exposes the identity and read-only chain state.
func WalletTools(id Identity, rpc ChainReader, usdc common.Address) []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "get_address",
			Description: "Get the address of the wallet the assistant controls.",
			InputSchema: GenerateSchema[noInput](),
			Function: func(ctx context.Context, _ json.RawMessage) (string, error) {
				return jsonResult(map[string]string{"address": id.Address().Hex()})
			},
		},
		{
			Name:        "get_chain",
			Description: "Get the chain the wallet is connected to.",
			InputSchema: GenerateSchema[noInput](),
			Function: func(ctx context.Context, _ json.RawMessage) (string, error) {
				out := map[string]any{"id": id.ChainID(), "source": "config"}
				if rpc != nil {
					if cid, err := rpc.ChainID(ctx); err == nil {
						out["id"] = cid.Int64()
						out["source"] = "rpc"
					}
				}
				return jsonResult(out)
			},
		},
		{
			Name:        "get_balance",
			Description: "Get the native POL balance, or an ERC-20 token balance, of a wallet on Polygon.",
			InputSchema: GenerateSchema[BalanceInput](),
			Function: func(ctx context.Context, input json.RawMessage) (string, error) {
				var in BalanceInput
				if err := decode(input, &in); err != nil {
					return "", err
				}
				if rpc == nil {
					return "", fmt.Errorf("rpc not configured")
				}
				holder := id.Address()
				if in.Address != "" {
					if !common.IsHexAddress(in.Address) {
						return "", fmt.Errorf("invalid address %q", in.Address)
					}
					holder = common.HexToAddress(in.Address)
				}

				token := strings.TrimSpace(in.Token)
				if token == "" || strings.EqualFold(token, "pol") || strings.EqualFold(token, "matic") {
					wei, err := rpc.NativeBalance(ctx, holder)
					if err != nil {
						return "", err
					}
					return jsonResult(balanceResult{
						Address: holder.Hex(), Token: "POL",
						Balance: chain.FormatEther(wei), Raw: wei.String(), Decimals: 18,
					})
				}

				tokenAddr := usdc
				if !strings.EqualFold(token, "usdc") {
					if !common.IsHexAddress(token) {
						return "", fmt.Errorf("invalid token %q", token)
					}
					tokenAddr = common.HexToAddress(token)
				}
				amount, decimals, err := rpc.TokenBalance(ctx, tokenAddr, holder)
				if err != nil {
					return "", err
				}
				return jsonResult(balanceResult{
					Address: holder.Hex(), Token: tokenAddr.Hex(),
					Balance: chain.FormatUnits(amount, int32(decimals)), Raw: amount.String(), Decimals: decimals,
				})
			},
		},
		{
			Name:        "sign_message",
			Description: "Sign a text message with the wallet (EIP-191).",
			InputSchema: GenerateSchema[SignMessageInput](),
			Function: func(ctx context.Context, input json.RawMessage) (string, error) {
				var in SignMessageInput
				if err := decode(input, &in); err != nil {
					return "", err
				}
				if in.Message == "" {
					return "", fmt.Errorf("message is required")
				}
				sig, err := id.SignMessage([]byte(in.Message))
				if err != nil {
					return "", err
				}
				return jsonResult(map[string]string{
					"address":   id.Address().Hex(),
					"message":   in.Message,
					"signature": sig,
				})
			},
		},
	}
}
