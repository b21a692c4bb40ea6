package market

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Level represents a single price level in the orderbook
type Level struct {
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// Orderbook is the in-memory state of one outcome token.
type Orderbook struct {
	TokenID     string
	bids        []Level // High to Low
	asks        []Level // Low to High
	lastUpdated time.Time
	mu          sync.RWMutex
}

func NewOrderbook(tokenID string) *Orderbook {
	return &Orderbook{
		TokenID: tokenID,
		bids:    make([]Level, 0),
		asks:    make([]Level, 0),
	}
}

// Snapshot replaces the entire book state
func (ob *Orderbook) Snapshot(bids, asks []Level) {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	ob.bids = sortLevels(bids, true)
	ob.asks = sortLevels(asks, false)
	ob.lastUpdated = time.Now()
}

// Update applies one price level change; size 0 removes the level.
func (ob *Orderbook) Update(side string, priceStr, sizeStr string) error {
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return err
	}
	size, err := decimal.NewFromString(sizeStr)
	if err != nil {
		return err
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()
	if side == "BUY" {
		ob.bids = updateLevel(ob.bids, price, size, true)
	} else {
		ob.asks = updateLevel(ob.asks, price, size, false)
	}
	ob.lastUpdated = time.Now()
	return nil
}

// Polymarket books are sparse, so a sorted slice is enough.
func updateLevel(levels []Level, price, size decimal.Decimal, descending bool) []Level {
	idx := -1
	for i, l := range levels {
		if l.Price.Equal(price) {
			idx = i
			break
		}
	}

	if size.IsZero() {
		if idx != -1 {
			levels = append(levels[:idx], levels[idx+1:]...)
		}
		return levels
	}

	if idx != -1 {
		levels[idx].Size = size
		return levels
	}
	return sortLevels(append(levels, Level{Price: price, Size: size}), descending)
}

func sortLevels(levels []Level, descending bool) []Level {
	sort.Slice(levels, func(i, j int) bool {
		if descending {
			return levels[i].Price.GreaterThan(levels[j].Price)
		}
		return levels[i].Price.LessThan(levels[j].Price)
	})
	return levels
}

// GetCopy returns a copy of the current levels.
func (ob *Orderbook) GetCopy() (bids, asks []Level) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	bids = make([]Level, len(ob.bids))
	copy(bids, ob.bids)
	asks = make([]Level, len(ob.asks))
	copy(asks, ob.asks)
	return
}

// Best returns the top of book; ok is false for an empty side.
func (ob *Orderbook) Best() (bid Level, hasBid bool, ask Level, hasAsk bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	if len(ob.bids) > 0 {
		bid, hasBid = ob.bids[0], true
	}
	if len(ob.asks) > 0 {
		ask, hasAsk = ob.asks[0], true
	}
	return
}

func (ob *Orderbook) LastUpdated() time.Time {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.lastUpdated
}

// Fresh reports whether the book has been updated within maxAge.
func (ob *Orderbook) Fresh(maxAge time.Duration) bool {
	last := ob.LastUpdated()
	return !last.IsZero() && time.Since(last) <= maxAge
}

// ParseLevel converts string price/size pairs as sent by the CLOB.
func ParseLevel(price, size string) (Level, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return Level{}, err
	}
	sz, err := decimal.NewFromString(size)
	if err != nil {
		return Level{}, err
	}
	return Level{Price: p, Size: sz}, nil
}
