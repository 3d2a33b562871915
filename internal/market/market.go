// Package market
package market

import (
	"context"
	"time"

	"github.com/LoShan17/loshan-chainflip-challenge/internal/orderbook"
	"github.com/LoShan17/loshan-chainflip-challenge/internal/tickmath"
)

// BookRecord is a point-in-time copy of the mirrored book kept for later analysis.
type BookRecord struct {
	BaseAsset  string            `json:"base_asset"`
	QuoteAsset string            `json:"quote_asset"`
	BidMaxTick tickmath.Tick     `json:"bid_max_tick"`
	AskMinTick tickmath.Tick     `json:"ask_min_tick"`
	LastPrice  string            `json:"last_price"` // hex, empty before the first price update
	LastTick   tickmath.Tick     `json:"last_tick"`
	Bids       []orderbook.Level `json:"bids"`
	Asks       []orderbook.Level `json:"asks"`
	Ranges     []orderbook.Level `json:"range_orders"`
	Timestamp  time.Time         `json:"timestamp"`
}

// PriceTick is one pool price notification.
type PriceTick struct {
	BaseAsset   string        `json:"base_asset"`
	QuoteAsset  string        `json:"quote_asset"`
	Price       string        `json:"price"`        // hex, 128 fractional bits
	MarketPrice string        `json:"market_price"` // decimal, quote per base
	Tick        tickmath.Tick `json:"tick"`
	Timestamp   time.Time     `json:"timestamp"`
}

// NewBookRecord copies a book snapshot into a record stamped with ts.
func NewBookRecord(s orderbook.Snapshot, ts time.Time) BookRecord {
	return BookRecord{
		BaseAsset:  s.BaseAsset,
		QuoteAsset: s.QuoteAsset,
		BidMaxTick: s.BidMaxTick,
		AskMinTick: s.AskMinTick,
		LastPrice:  s.LastPrice,
		LastTick:   s.LastTick,
		Bids:       s.Bids,
		Asks:       s.Asks,
		Ranges:     s.Ranges,
		Timestamp:  ts.UTC(),
	}
}

// MarketManager interface for book record and price tick storage.
type MarketManager interface {
	SaveBookRecord(ctx context.Context, r BookRecord) error
	GetBookRecords(ctx context.Context, baseAsset, quoteAsset string, start, end time.Time) ([]BookRecord, error)
	SavePriceTick(ctx context.Context, tick PriceTick) error
	GetPriceTicks(ctx context.Context, baseAsset, quoteAsset string, start, end time.Time) ([]PriceTick, error)
}
