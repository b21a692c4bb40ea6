package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/GoPolymarket/polymarket-go-sdk"
	"github.com/GoPolymarket/polymarket-go-sdk/pkg/gamma"
	sdktypes "github.com/GoPolymarket/polymarket-go-sdk/pkg/types"
)

const (
	defaultEventLimit = 10
	maxEventLimit     = 50
)

// sdkConfig is the SDK default configuration with the Gamma endpoint
// pointed at gammaURL when one is set.
func sdkConfig(gammaURL string) polymarket.Config {
	cfg := polymarket.DefaultConfig()
	if gammaURL = strings.TrimRight(strings.TrimSpace(gammaURL), "/"); gammaURL != "" {
		cfg.BaseURLs.Gamma = gammaURL
	}
	return cfg
}

// listEvents lists active, open events ordered by 24h volume.
func listEvents(ctx context.Context, client gamma.Client, limit int) ([]gamma.Event, error) {
	if limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}
	active, closed, ascending := true, false, false
	events, err := client.Events(ctx, &gamma.EventsRequest{
		Limit:     &limit,
		Active:    &active,
		Closed:    &closed,
		Order:     []string{"volume24hr"},
		Ascending: &ascending,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	if events == nil {
		events = []gamma.Event{}
	}
	return events, nil
}

// lookupMarket fetches one market by numeric id or by slug.
func lookupMarket(ctx context.Context, client gamma.Client, idOrSlug string) (*gamma.Market, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	if idOrSlug == "" {
		return nil, fmt.Errorf("market id is required")
	}

	var (
		m   *gamma.Market
		err error
	)
	if _, perr := strconv.ParseUint(idOrSlug, 10, 64); perr == nil {
		m, err = client.MarketByID(ctx, &gamma.MarketByIDRequest{ID: idOrSlug})
	} else {
		m, err = client.MarketBySlug(ctx, &gamma.MarketBySlugRequest{Slug: url.PathEscape(idOrSlug)})
	}
	if err != nil {
		var apiErr *sdktypes.Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return nil, fmt.Errorf("market %q not found", idOrSlug)
		}
		return nil, fmt.Errorf("failed to fetch market: %w", err)
	}
	if m == nil || m.ID == "" {
		return nil, fmt.Errorf("market %q not found", idOrSlug)
	}
	return m, nil
}
