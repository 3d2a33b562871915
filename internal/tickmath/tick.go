// Package tickmath converts between ticks, fixed point pool prices and human
// readable market prices, and handles the hex encoded amounts used on the wire.
package tickmath

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	MinTick Tick = -887272
	MaxTick Tick = 887272

	// FractionalBits is the number of fractional bits of a pool price.
	FractionalBits = 128

	// marketPriceScale is the number of decimal places kept when descaling a pool price.
	marketPriceScale = 24

	// tickTolerance absorbs float64 rounding so that an exact tick price floors back
	// to itself. It must stay well below the tick offset of a one ulp price change.
	tickTolerance = 1e-9
)

var (
	ErrPriceOutOfRange = errors.New("price out of tick range")

	logBase   = math.Log(1.0001)
	priceOne  = new(big.Int).Lsh(big.NewInt(1), FractionalBits)
	decOneFix = decimal.NewFromBigInt(priceOne, 0)
)

// Tick is the discretized log price, log_1.0001 of the price.
type Tick int32

// Valid reports whether t lies inside [MinTick, MaxTick].
func (t Tick) Valid() bool {
	return t >= MinTick && t <= MaxTick
}

// TickToPrice returns 1.0001^tick * base/quote. The result is a float64 and is
// meant for display, not for bit exact comparison with on-chain values.
func TickToPrice(tick Tick, basePrecision, quotePrecision *big.Int) float64 {
	return math.Exp(float64(tick)*logBase) * precisionRatio(basePrecision, quotePrecision)
}

// PriceToTick returns the tick whose price does not exceed price, i.e.
// floor(log_1.0001(price * quote/base)).
func PriceToTick(price float64, basePrecision, quotePrecision *big.Int) (Tick, error) {
	if !(price > 0) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("%w: %v", ErrPriceOutOfRange, price)
	}
	return floorTick(math.Log(price / precisionRatio(basePrecision, quotePrecision)))
}

// PriceToMarketPrice descales a 128 fractional bit pool price into quote asset
// units per base asset unit: (raw / 2^128) * (base / quote).
func PriceToMarketPrice(rawPrice, basePrecision, quotePrecision *big.Int) decimal.Decimal {
	if rawPrice == nil || basePrecision == nil || quotePrecision == nil || quotePrecision.Sign() == 0 {
		return decimal.Zero
	}
	num := decimal.NewFromBigInt(rawPrice, 0).Mul(decimal.NewFromBigInt(basePrecision, 0))
	den := decOneFix.Mul(decimal.NewFromBigInt(quotePrecision, 0))
	return num.DivRound(den, marketPriceScale)
}

// FixedPriceToTick returns the floored tick implied by a 128 fractional bit
// pool price, before any asset precision scaling.
func FixedPriceToTick(rawPrice *big.Int) (Tick, error) {
	if rawPrice == nil || rawPrice.Sign() <= 0 {
		return 0, fmt.Errorf("%w: non-positive fixed point price", ErrPriceOutOfRange)
	}
	f := new(big.Float).SetInt(rawPrice)
	f.SetMantExp(f, -FractionalBits)
	p, _ := f.Float64()
	if p == 0 || math.IsInf(p, 0) {
		return 0, fmt.Errorf("%w: %s", ErrPriceOutOfRange, EncodeHex(rawPrice))
	}
	return floorTick(math.Log(p))
}

func floorTick(lnPrice float64) (Tick, error) {
	t := math.Floor(lnPrice/logBase + tickTolerance)
	if t < float64(MinTick) || t > float64(MaxTick) || math.IsNaN(t) {
		return 0, fmt.Errorf("%w: tick %v", ErrPriceOutOfRange, t)
	}
	return Tick(t), nil
}

func precisionRatio(basePrecision, quotePrecision *big.Int) float64 {
	if basePrecision == nil || quotePrecision == nil || quotePrecision.Sign() == 0 {
		return 1
	}
	r, _ := new(big.Rat).SetFrac(basePrecision, quotePrecision).Float64()
	return r
}
