package orderbook

import (
	"math/big"

	"github.com/LoShan17/loshan-chainflip-challenge/internal/tickmath"
)

// Level is one rendered price level.
type Level struct {
	Tick   tickmath.Tick `json:"tick"`
	Amount string        `json:"amount"`
	// Price is the market price at Tick, zero when an asset precision is unknown.
	Price float64 `json:"price"`
}

// Snapshot is a plain copy of the book for display and JSON encoding.
type Snapshot struct {
	BaseAsset   string        `json:"base_asset"`
	QuoteAsset  string        `json:"quote_asset"`
	Bids        []Level       `json:"bids"`
	Asks        []Level       `json:"asks"`
	Ranges      []Level       `json:"range_orders"`
	BidMaxTick  tickmath.Tick `json:"bid_max_tick"`
	AskMinTick  tickmath.Tick `json:"ask_min_tick"`
	HasPrice    bool          `json:"has_price"`
	LastPrice   string        `json:"last_price,omitempty"`
	LastTick    tickmath.Tick `json:"last_tick"`
	MarketPrice string        `json:"market_price,omitempty"`
}

// Snapshot copies the book. Bids are best first, asks best first and range
// change points in increasing tick order.
func (ob *OrderBook) Snapshot() Snapshot {
	s := Snapshot{
		BaseAsset:  ob.baseAsset,
		QuoteAsset: ob.quoteAsset,
		Bids:       make([]Level, 0, ob.bids.Len()),
		Asks:       make([]Level, 0, ob.asks.Len()),
		Ranges:     make([]Level, 0, ob.ranges.Len()),
		BidMaxTick: ob.bidMaxTick,
		AskMinTick: ob.askMinTick,
		HasPrice:   ob.hasPrice,
		LastTick:   ob.lastTick,
	}

	ob.bids.Descend(func(t tickmath.Tick, v *big.Int) bool {
		s.Bids = append(s.Bids, ob.level(t, v))
		return true
	})
	ob.asks.Ascend(func(t tickmath.Tick, v *big.Int) bool {
		s.Asks = append(s.Asks, ob.level(t, v))
		return true
	})
	ob.ranges.Ascend(func(t tickmath.Tick, v *big.Int) bool {
		s.Ranges = append(s.Ranges, ob.level(t, v))
		return true
	})

	if ob.hasPrice {
		s.LastPrice = tickmath.EncodeHex(ob.lastPrice)
		s.MarketPrice = ob.MarketPrice()
	}
	return s
}

// MarketPrice is the last pool price in quote units per base unit, empty
// before the first price update or when an asset precision is unknown.
func (ob *OrderBook) MarketPrice() string {
	if !ob.hasPrice || !ob.hasPrecision() {
		return ""
	}
	return tickmath.PriceToMarketPrice(ob.lastPrice, ob.basePrecision, ob.quotePrecision).String()
}

// PriceAt is the market price of tick, zero when an asset precision is unknown.
func (ob *OrderBook) PriceAt(tick tickmath.Tick) float64 {
	if !ob.hasPrecision() {
		return 0
	}
	return tickmath.TickToPrice(tick, ob.basePrecision, ob.quotePrecision)
}

func (ob *OrderBook) level(t tickmath.Tick, v *big.Int) Level {
	return Level{Tick: t, Amount: tickmath.EncodeHex(v), Price: ob.PriceAt(t)}
}

func (ob *OrderBook) hasPrecision() bool {
	return ob.basePrecision != nil && ob.quotePrecision != nil
}
