package orderbook

import "github.com/LoShan17/loshan-chainflip-challenge/internal/tickmath"

// LiquiditySnapshot is the result of a cf_pool_liquidity query.
// LimitOrders and either of its sides may be absent; RangeOrders may not.
type LiquiditySnapshot struct {
	LimitOrders *LimitOrders  `json:"limit_orders,omitempty"`
	RangeOrders *[]RangeLevel `json:"range_orders"`
}

type LimitOrders struct {
	Asks *[]LimitLevel `json:"asks,omitempty"`
	Bids *[]LimitLevel `json:"bids,omitempty"`
}

// LimitLevel is the aggregated limit order amount resting at one tick.
type LimitLevel struct {
	Tick   *tickmath.Tick `json:"tick"`
	Amount string         `json:"amount"`
}

// RangeLevel marks a change of cumulative range order liquidity at Tick.
type RangeLevel struct {
	Tick      *tickmath.Tick `json:"tick"`
	Liquidity string         `json:"liquidity"`
}

// PriceUpdate is the result of a cf_subscribe_pool_price notification.
type PriceUpdate struct {
	Price     *string        `json:"price"`
	Tick      *tickmath.Tick `json:"tick"`
	SqrtPrice *string        `json:"sqrt_price,omitempty"`
}

// TickPtr is a convenience for building payloads by hand.
func TickPtr(t tickmath.Tick) *tickmath.Tick {
	return &t
}
