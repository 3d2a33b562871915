// Package db
package db

import (
	"context"

	"github.com/LoShan17/loshan-chainflip-challenge/internal/journal"
	"github.com/LoShan17/loshan-chainflip-challenge/internal/market"
)

type (
	BookRecord = market.BookRecord
	PriceTick  = market.PriceTick
	Event      = journal.Event
)

// Storage is the interface for the book journal. It only records history;
// the order book is never restored from it.
type Storage interface {
	market.MarketManager
	journal.Journaler
	Ping(ctx context.Context) error
	Close() error
}
