package db

import (
	"context"
	"testing"
	"time"

	"github.com/LoShan17/loshan-chainflip-challenge/internal/orderbook"
	"github.com/LoShan17/loshan-chainflip-challenge/internal/tickmath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord(ts time.Time, bidMax int32) BookRecord {
	return BookRecord{
		BaseAsset:  "ETH",
		QuoteAsset: "USDC",
		BidMaxTick: tickmath.Tick(bidMax),
		AskMinTick: 10,
		Bids:       []orderbook.Level{{Tick: 5, Amount: "0x64"}},
		Asks:       []orderbook.Level{{Tick: 10, Amount: "0xc8"}},
		Ranges:     []orderbook.Level{{Tick: 0, Amount: "0x3e8"}, {Tick: 20, Amount: "0x0"}},
		Timestamp:  ts,
	}
}

func TestMemoryBookRecords(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, m.SaveBookRecord(ctx, sampleRecord(base.Add(2*time.Minute), 7)))
	require.NoError(t, m.SaveBookRecord(ctx, sampleRecord(base, 5)))
	require.NoError(t, m.SaveBookRecord(ctx, sampleRecord(base.Add(10*time.Minute), 9)))

	other := sampleRecord(base, 1)
	other.BaseAsset = "BTC"
	require.NoError(t, m.SaveBookRecord(ctx, other))

	got, err := m.GetBookRecords(ctx, "eth", "usdc", base, base.Add(5*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, base, got[0].Timestamp)
	assert.EqualValues(t, 5, got[0].BidMaxTick)
	assert.EqualValues(t, 7, got[1].BidMaxTick)

	got, err = m.GetBookRecords(ctx, "BTC", "USDC", base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryPriceTicks(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))

	for i := 0; i < 3; i++ {
		require.NoError(t, m.SavePriceTick(ctx, PriceTick{
			BaseAsset:   "ETH",
			QuoteAsset:  "USDC",
			Price:       "0x393d4b7e97617d02dd59df31a5a9",
			MarketPrice: "3400.1",
			Tick:        -125890,
			Timestamp:   base.Add(time.Duration(i) * time.Second),
		}))
	}

	got, err := m.GetPriceTicks(ctx, "ETH", "USDC", base.Add(time.Second), base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, time.UTC, got[0].Timestamp.Location())
	assert.True(t, got[0].Timestamp.Before(got[1].Timestamp))
}

func TestMemoryEvents(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now()

	require.NoError(t, m.LogEvent(ctx, Event{Time: now, Type: "snapshot", Description: "loaded"}))
	require.NoError(t, m.LogEvent(ctx, Event{Time: now, Type: "error", Description: "bad payload"}))
	require.NoError(t, m.LogEvent(ctx, Event{Time: now.Add(time.Hour), Type: "snapshot", Description: "later"}))

	got, err := m.GetEvents(ctx, "snapshot", now.Add(-time.Minute), now.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "loaded", got[0].Description)
}

func TestMemoryClose(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Ping(ctx))
	require.NoError(t, m.Close())

	assert.ErrorIs(t, m.Ping(ctx), ErrClosed)
	assert.ErrorIs(t, m.SaveBookRecord(ctx, sampleRecord(time.Now(), 1)), ErrClosed)
	assert.ErrorIs(t, m.LogEvent(ctx, Event{Type: "x"}), ErrClosed)
}
