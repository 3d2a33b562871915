// Package orderbook keeps a local mirror of a pool's limit and range orders
// keyed by tick.
//
// An OrderBook is not safe for concurrent use. It is mutated by a single feed
// loop; anything that reads it concurrently must go through Guarded.
package orderbook

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/LoShan17/loshan-chainflip-challenge/internal/tickmath"
)

// Side of a limit order. Buy orders rest in bids, sell orders in asks.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	}
	return fmt.Sprintf("Side(%d)", int(s))
}

func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSide, s)
}

// OrderBook holds the aggregated limit orders and the range order liquidity
// step function of one base/quote pool.
type OrderBook struct {
	baseAsset  string
	quoteAsset string

	// nil when the asset is missing from the precision table
	basePrecision  *big.Int
	quotePrecision *big.Int

	bids   *TickMap
	asks   *TickMap
	ranges *TickMap

	bidMaxTick tickmath.Tick
	askMinTick tickmath.Tick

	lastPrice *big.Int
	lastTick  tickmath.Tick
	hasPrice  bool
}

// New creates an empty book for the pair.
func New(baseAsset, quoteAsset string) *OrderBook {
	ob := &OrderBook{
		baseAsset:  baseAsset,
		quoteAsset: quoteAsset,
		bids:       NewTickMap(),
		asks:       NewTickMap(),
		ranges:     NewTickMap(),
		bidMaxTick: tickmath.MinTick,
		askMinTick: tickmath.MaxTick,
	}
	if p, err := tickmath.Precision(baseAsset); err == nil {
		ob.basePrecision = p
	}
	if p, err := tickmath.Precision(quoteAsset); err == nil {
		ob.quotePrecision = p
	}
	return ob
}

func (ob *OrderBook) BaseAsset() string  { return ob.baseAsset }
func (ob *OrderBook) QuoteAsset() string { return ob.quoteAsset }

// LoadSnapshot replaces the whole book with the content of payload. The
// payload is fully decoded before anything is swapped in, so on error the
// previous state is kept.
func (ob *OrderBook) LoadSnapshot(payload *LiquiditySnapshot) error {
	if payload == nil {
		return fmt.Errorf("%w: empty liquidity payload", ErrMalformedFeedPayload)
	}
	if payload.RangeOrders == nil {
		return fmt.Errorf("%w: missing range_orders", ErrMalformedFeedPayload)
	}

	var asks, bids *[]LimitLevel
	if payload.LimitOrders != nil {
		asks = payload.LimitOrders.Asks
		bids = payload.LimitOrders.Bids
	}

	newAsks, err := buildLimitSide("asks", asks)
	if err != nil {
		return err
	}
	newBids, err := buildLimitSide("bids", bids)
	if err != nil {
		return err
	}

	newRanges := NewTickMap()
	for i, lvl := range *payload.RangeOrders {
		tick, err := checkTick("range_orders", i, lvl.Tick)
		if err != nil {
			return err
		}
		if lvl.Liquidity == "" {
			return fmt.Errorf("%w: range_orders[%d] missing liquidity", ErrMalformedFeedPayload, i)
		}
		liquidity, err := tickmath.HexToDecimal(lvl.Liquidity)
		if err != nil {
			return fmt.Errorf("range_orders[%d]: %w", i, err)
		}
		newRanges.Set(tick, liquidity)
	}

	ob.bids = newBids
	ob.asks = newAsks
	ob.ranges = newRanges
	ob.bidMaxTick = tickmath.MinTick
	if t, ok := newBids.Max(); ok {
		ob.bidMaxTick = t
	}
	ob.askMinTick = tickmath.MaxTick
	if t, ok := newAsks.Min(); ok {
		ob.askMinTick = t
	}
	return nil
}

func buildLimitSide(name string, levels *[]LimitLevel) (*TickMap, error) {
	m := NewTickMap()
	if levels == nil {
		return m, nil
	}
	for i, lvl := range *levels {
		tick, err := checkTick(name, i, lvl.Tick)
		if err != nil {
			return nil, err
		}
		if lvl.Amount == "" {
			return nil, fmt.Errorf("%w: %s[%d] missing amount", ErrMalformedFeedPayload, name, i)
		}
		amount, err := tickmath.HexToDecimal(lvl.Amount)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", name, i, err)
		}
		// one amount per tick is expected; a repeated tick overwrites
		m.Set(tick, amount)
	}
	return m, nil
}

func checkTick(name string, i int, tick *tickmath.Tick) (tickmath.Tick, error) {
	if tick == nil {
		return 0, fmt.Errorf("%w: %s[%d] missing tick", ErrMalformedFeedPayload, name, i)
	}
	if !tick.Valid() {
		return 0, fmt.Errorf("%w: %s[%d]: %w %d", ErrMalformedFeedPayload, name, i, ErrTickOutOfRange, *tick)
	}
	return *tick, nil
}

// ApplyPriceUpdate records the last pool price and tick. On error the previous
// values are kept.
func (ob *OrderBook) ApplyPriceUpdate(payload *PriceUpdate) error {
	if payload == nil || payload.Price == nil || payload.Tick == nil {
		return fmt.Errorf("%w: price update needs price and tick", ErrMalformedFeedPayload)
	}
	if !payload.Tick.Valid() {
		return fmt.Errorf("%w: %w %d", ErrMalformedFeedPayload, ErrTickOutOfRange, *payload.Tick)
	}
	price, err := tickmath.HexToDecimal(*payload.Price)
	if err != nil {
		return fmt.Errorf("price: %w", err)
	}

	ob.lastPrice = price
	ob.lastTick = *payload.Tick
	ob.hasPrice = true
	return nil
}

// InsertLimitOrder adds sellAmountHex to the level at tick on the given side.
// Top of book can only improve: no level is ever removed here.
func (ob *OrderBook) InsertLimitOrder(side Side, tick tickmath.Tick, sellAmountHex string) error {
	if !tick.Valid() {
		return fmt.Errorf("%w: %d", ErrTickOutOfRange, tick)
	}
	var levels *TickMap
	switch side {
	case Buy:
		levels = ob.bids
	case Sell:
		levels = ob.asks
	default:
		return fmt.Errorf("%w: %s", ErrInvalidSide, side)
	}
	amount, err := tickmath.HexToDecimal(sellAmountHex)
	if err != nil {
		return err
	}

	if existing, ok := levels.Get(tick); ok {
		amount = new(big.Int).Add(existing, amount)
	}
	levels.Set(tick, amount)

	if side == Buy && tick > ob.bidMaxTick {
		ob.bidMaxTick = tick
	}
	if side == Sell && tick < ob.askMinTick {
		ob.askMinTick = tick
	}
	return nil
}

// InsertRangeOrder adds sizeHex liquidity over [low, high).
//
// Only boundaries are materialized. A boundary is created at high carrying the
// liquidity that was in force just below high, every existing key inside
// [low, high) gets size added, and a boundary is created at low carrying the
// liquidity in force just below low plus size. Both "below" values are read
// before anything is written.
func (ob *OrderBook) InsertRangeOrder(low, high tickmath.Tick, sizeHex string) error {
	if !low.Valid() || !high.Valid() {
		return fmt.Errorf("%w: [%d, %d)", ErrTickOutOfRange, low, high)
	}
	if low >= high {
		return fmt.Errorf("%w: [%d, %d)", ErrInvalidRange, low, high)
	}
	size, err := tickmath.HexToDecimal(sizeHex)
	if err != nil {
		return err
	}

	r := ob.ranges
	belowHigh := r.ValueAt(high - 1)
	belowLow := r.ValueAt(low - 1)
	lowExisted := r.Has(low)

	if !r.Has(high) {
		r.Set(high, belowHigh)
	}

	// keys from ceiling(low) to floor(high-1)
	from, to := r.span(low, high)
	for i := from; i < to; i++ {
		r.entries[i].value = new(big.Int).Add(r.entries[i].value, size)
	}

	if !lowExisted {
		r.Set(low, belowLow.Add(belowLow, size))
	}
	return nil
}

// BidMaxTick is the best bid tick, or tickmath.MinTick when there are no bids.
func (ob *OrderBook) BidMaxTick() tickmath.Tick { return ob.bidMaxTick }

// AskMinTick is the best ask tick, or tickmath.MaxTick when there are no asks.
func (ob *OrderBook) AskMinTick() tickmath.Tick { return ob.askMinTick }

// LastPrice returns a copy of the last pool price, nil before the first update.
func (ob *OrderBook) LastPrice() *big.Int {
	if ob.lastPrice == nil {
		return nil
	}
	return new(big.Int).Set(ob.lastPrice)
}

func (ob *OrderBook) LastTick() tickmath.Tick { return ob.lastTick }
func (ob *OrderBook) HasPrice() bool          { return ob.hasPrice }

// Bids returns a copy of the bid levels.
func (ob *OrderBook) Bids() *TickMap { return ob.bids.Clone() }

// Asks returns a copy of the ask levels.
func (ob *OrderBook) Asks() *TickMap { return ob.asks.Clone() }

// Ranges returns a copy of the range liquidity change points.
func (ob *OrderBook) Ranges() *TickMap { return ob.ranges.Clone() }

// LiquidityAt is the range order liquidity in force at tick.
func (ob *OrderBook) LiquidityAt(tick tickmath.Tick) *big.Int {
	return ob.ranges.ValueAt(tick)
}

// TopOfBook summarizes the best levels on both sides.
type TopOfBook struct {
	BidMaxTick tickmath.Tick `json:"bid_max_tick"`
	AskMinTick tickmath.Tick `json:"ask_min_tick"`
	HasBids    bool          `json:"has_bids"`
	HasAsks    bool          `json:"has_asks"`
}

func (ob *OrderBook) TopOfBook() TopOfBook {
	return TopOfBook{
		BidMaxTick: ob.bidMaxTick,
		AskMinTick: ob.askMinTick,
		HasBids:    ob.bids.Len() > 0,
		HasAsks:    ob.asks.Len() > 0,
	}
}

// CheckInvariants verifies that the top of book ticks agree with the level maps
// and that no amount is negative.
func (ob *OrderBook) CheckInvariants() error {
	if highest, ok := ob.bids.Max(); ok {
		if ob.bidMaxTick != highest {
			return fmt.Errorf("%w: bid_max_tick %d, highest bid %d", ErrInvariantViolation, ob.bidMaxTick, highest)
		}
	} else if ob.bidMaxTick != tickmath.MinTick {
		return fmt.Errorf("%w: bid_max_tick %d with no bids", ErrInvariantViolation, ob.bidMaxTick)
	}

	if lowest, ok := ob.asks.Min(); ok {
		if ob.askMinTick != lowest {
			return fmt.Errorf("%w: ask_min_tick %d, lowest ask %d", ErrInvariantViolation, ob.askMinTick, lowest)
		}
	} else if ob.askMinTick != tickmath.MaxTick {
		return fmt.Errorf("%w: ask_min_tick %d with no asks", ErrInvariantViolation, ob.askMinTick)
	}

	for name, m := range map[string]*TickMap{"bids": ob.bids, "asks": ob.asks, "range_orders": ob.ranges} {
		var bad error
		m.Ascend(func(t tickmath.Tick, v *big.Int) bool {
			if v.Sign() < 0 {
				bad = fmt.Errorf("%w: negative %s value at tick %d", ErrInvariantViolation, name, t)
				return false
			}
			return true
		})
		if bad != nil {
			return bad
		}
	}
	return nil
}

// Equal reports whether two books hold identical state.
func (ob *OrderBook) Equal(o *OrderBook) bool {
	if ob.baseAsset != o.baseAsset || ob.quoteAsset != o.quoteAsset {
		return false
	}
	if ob.bidMaxTick != o.bidMaxTick || ob.askMinTick != o.askMinTick {
		return false
	}
	if ob.hasPrice != o.hasPrice || ob.lastTick != o.lastTick {
		return false
	}
	if (ob.lastPrice == nil) != (o.lastPrice == nil) || (ob.lastPrice != nil && ob.lastPrice.Cmp(o.lastPrice) != 0) {
		return false
	}
	return ob.bids.Equal(o.bids) && ob.asks.Equal(o.asks) && ob.ranges.Equal(o.ranges)
}

// String renders the book for logs. Ranges are listed from the highest tick,
// bids best first, asks best first.
func (ob *OrderBook) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Book %s/%s\n", ob.baseAsset, ob.quoteAsset)

	b.WriteString("Range price points:\n")
	ob.ranges.Descend(func(t tickmath.Tick, v *big.Int) bool {
		fmt.Fprintf(&b, "  %d: %s\n", t, tickmath.EncodeHex(v))
		return true
	})

	b.WriteString("Limit bids:\n")
	ob.bids.Descend(func(t tickmath.Tick, v *big.Int) bool {
		fmt.Fprintf(&b, "  %d: %s\n", t, tickmath.EncodeHex(v))
		return true
	})

	b.WriteString("Limit asks:\n")
	ob.asks.Ascend(func(t tickmath.Tick, v *big.Int) bool {
		fmt.Fprintf(&b, "  %d: %s\n", t, tickmath.EncodeHex(v))
		return true
	})

	fmt.Fprintf(&b, "Top of book: bid_max_tick=%d ask_min_tick=%d\n", ob.bidMaxTick, ob.askMinTick)
	if ob.hasPrice {
		fmt.Fprintf(&b, "Last price: %s tick=%d", tickmath.EncodeHex(ob.lastPrice), ob.lastTick)
	} else {
		b.WriteString("Last price: none")
	}
	return b.String()
}
