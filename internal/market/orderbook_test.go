package market

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lvl(p, s string) Level {
	l, _ := ParseLevel(p, s)
	return l
}

func TestSnapshotSortsSides(t *testing.T) {
	ob := NewOrderbook("1")
	ob.Snapshot(
		[]Level{lvl("0.40", "10"), lvl("0.45", "5")},
		[]Level{lvl("0.55", "3"), lvl("0.50", "7")},
	)

	bid, hasBid, ask, hasAsk := ob.Best()
	require.True(t, hasBid)
	require.True(t, hasAsk)
	assert.True(t, bid.Price.Equal(decimal.RequireFromString("0.45")))
	assert.True(t, ask.Price.Equal(decimal.RequireFromString("0.50")))
	assert.True(t, ob.Fresh(time.Second))
}

func TestUpdateInsertsAndRemoves(t *testing.T) {
	ob := NewOrderbook("1")
	require.NoError(t, ob.Update("BUY", "0.30", "10"))
	require.NoError(t, ob.Update("BUY", "0.35", "1"))
	require.NoError(t, ob.Update("SELL", "0.60", "2"))

	bids, asks := ob.GetCopy()
	require.Len(t, bids, 2)
	assert.Equal(t, "0.35", bids[0].Price.String())
	require.Len(t, asks, 1)

	require.NoError(t, ob.Update("BUY", "0.35", "0"))
	bids, _ = ob.GetCopy()
	require.Len(t, bids, 1)
	assert.Equal(t, "0.3", bids[0].Price.String())

	assert.Error(t, ob.Update("BUY", "abc", "1"))
}

func TestEmptyBookIsNotFresh(t *testing.T) {
	ob := NewOrderbook("1")
	_, hasBid, _, hasAsk := ob.Best()
	assert.False(t, hasBid)
	assert.False(t, hasAsk)
	assert.False(t, ob.Fresh(time.Hour))
}

func TestHandleMessageAppliesSubscribedBooks(t *testing.T) {
	svc := NewMarketService("")
	svc.Subscribe([]string{"tok"})

	svc.HandleMessage([]byte(`[{"event_type":"book","asset_id":"tok","bids":[{"price":"0.48","size":"100"}],"asks":[{"price":"0.52","size":"80"}]},
		{"event_type":"book","asset_id":"other","bids":[{"price":"0.1","size":"1"}]}]`))
	svc.HandleMessage([]byte(`{"event_type":"price_change","asset_id":"tok","changes":[{"price":"0.49","size":"20","side":"BUY"}]}`))
	svc.HandleMessage([]byte(`not json`))

	book := svc.GetBook("tok")
	require.NotNil(t, book)
	bid, _, ask, _ := book.Best()
	assert.Equal(t, "0.49", bid.Price.String())
	assert.Equal(t, "0.52", ask.Price.String())
	assert.Nil(t, svc.GetBook("other"))
}
