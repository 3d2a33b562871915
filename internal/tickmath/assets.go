package tickmath

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
)

var ErrUnknownAsset = errors.New("unknown asset")

var (
	assetsMu sync.RWMutex
	// decimals of the smallest unit of each asset
	assetDecimals = map[string]uint8{
		"ETH":  18,
		"FLIP": 18,
		"USDC": 6,
		"USDT": 6,
		"BTC":  8,
		"DOT":  10,
		"SOL":  9,
	}
)

// RegisterAsset adds or overrides the decimal precision of an asset.
func RegisterAsset(symbol string, decimals uint8) {
	assetsMu.Lock()
	defer assetsMu.Unlock()
	assetDecimals[normalizeAsset(symbol)] = decimals
}

// Decimals returns the number of decimals of an asset's smallest unit.
func Decimals(symbol string) (uint8, error) {
	assetsMu.RLock()
	defer assetsMu.RUnlock()
	d, ok := assetDecimals[normalizeAsset(symbol)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAsset, symbol)
	}
	return d, nil
}

// Precision returns 10^decimals for the asset, e.g. 10^18 for ETH.
func Precision(symbol string) (*big.Int, error) {
	d, err := Decimals(symbol)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(d)), nil), nil
}

func normalizeAsset(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
