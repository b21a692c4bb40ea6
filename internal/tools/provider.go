package tools

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/GoPolymarket/polychat/internal/model"
	"github.com/GoPolymarket/polychat/internal/pkg/apperrors"
	"github.com/GoPolymarket/polychat/internal/service"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

var (
	errNoIdentity = errors.New("signing identity not initialized")
	errNoSession  = errors.New("trading session factory not configured")
)

// SessionFunc opens a Polymarket session for the given credentials.
type SessionFunc func(creds service.Credentials) (Trading, error)

type Auditor interface {
	Log(entry *model.ToolAudit)
}

// Provider assembles the per-request tool set.
type Provider struct {
	Identity    Identity
	Chain       ChainReader
	USDC        common.Address
	Credentials service.Credentials
	NewSession  SessionFunc
	Audit       Auditor
}

// Build returns the wallet and Polymarket tools for one request. Any
// failure to open the trading session is an upstream tool error.
func (p *Provider) Build(ctx context.Context, requestID string) (*Set, error) {
	if p.Identity == nil {
		return nil, apperrors.NewUpstreamTool("tool initialization", errNoIdentity)
	}
	if p.NewSession == nil {
		return nil, apperrors.NewUpstreamTool("tool initialization", errNoSession)
	}
	session, err := p.NewSession(p.Credentials)
	if err != nil {
		return nil, apperrors.NewUpstreamTool("tool initialization", err)
	}

	defs := append(WalletTools(p.Identity, p.Chain, p.USDC), PolymarketTools(session)...)
	if p.Audit != nil {
		for i := range defs {
			defs[i].Function = audited(p.Audit, requestID, defs[i].Name, defs[i].Function)
		}
	}
	set, err := NewSet(defs...)
	if err != nil {
		return nil, apperrors.NewUpstreamTool("tool initialization", err)
	}
	return set, nil
}

func audited(a Auditor, requestID, name string, fn Function) Function {
	return func(ctx context.Context, input json.RawMessage) (string, error) {
		start := time.Now()
		out, err := fn(ctx, input)
		entry := &model.ToolAudit{
			ID:         uuid.NewString(),
			RequestID:  requestID,
			Tool:       name,
			Arguments:  string(input),
			ResultSize: len(out),
			LatencyMs:  time.Since(start).Milliseconds(),
			CreatedAt:  start.UTC(),
		}
		if err != nil {
			entry.Error = err.Error()
		}
		a.Log(entry)
		return out, err
	}
}
