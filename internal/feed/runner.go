package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/LoShan17/loshan-chainflip-challenge/internal/db"
	"github.com/LoShan17/loshan-chainflip-challenge/internal/market"
	"github.com/LoShan17/loshan-chainflip-challenge/internal/metrics"
	"github.com/LoShan17/loshan-chainflip-challenge/internal/notifier"
	"github.com/LoShan17/loshan-chainflip-challenge/internal/orderbook"
	"github.com/LoShan17/loshan-chainflip-challenge/internal/tickmath"
	"github.com/LoShan17/loshan-chainflip-challenge/internal/utils"
	"github.com/rs/zerolog"
)

// Runner refreshes the book on every notification.
type Runner struct {
	book          *orderbook.Guarded
	source        LiquiditySource
	notifications <-chan Notification

	storage         db.Storage
	notifier        notifier.Notifier
	checkInvariants bool
	check           func(*orderbook.OrderBook) error
	now             func() time.Time
}

type RunnerOption func(*Runner)

// WithStorage journals every refreshed book and price update.
func WithStorage(s db.Storage) RunnerOption {
	return func(r *Runner) { r.storage = s }
}

func WithNotifier(n notifier.Notifier) RunnerOption {
	return func(r *Runner) { r.notifier = n }
}

// WithInvariantChecks verifies the book after every refresh.
func WithInvariantChecks(enabled bool) RunnerOption {
	return func(r *Runner) { r.checkInvariants = enabled }
}

func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

func NewRunner(book *orderbook.Guarded, source LiquiditySource, notifications <-chan Notification, opts ...RunnerOption) *Runner {
	r := &Runner{
		book:          book,
		source:        source,
		notifications: notifications,
		notifier:      notifier.Nop{},
		check:         (*orderbook.OrderBook).CheckInvariants,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run handles notifications until ctx is cancelled or the channel closes.
// Failed refreshes are logged and the previous book is kept.
func (r *Runner) Run(ctx context.Context) error {
	logger := utils.GetLogger()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-r.notifications:
			if !ok {
				logger.Info().Msg("Notification channel closed, runner stopping")
				return nil
			}
			if err := r.Handle(ctx, n); err != nil {
				logger.Error().Err(err).Str("method", n.Method).Msg("Failed to refresh order book")
				r.journal(ctx, "error", err.Error(), map[string]any{"method": n.Method})
			}
		}
	}
}

// Handle reloads the pool liquidity and, for pool price notifications, the
// last price. A failure of one step does not prevent the other.
func (r *Runner) Handle(ctx context.Context, n Notification) error {
	logger := utils.GetLogger()
	var errs []error

	if err := r.reload(ctx); err != nil {
		errs = append(errs, err)
	}

	if n.Method == MethodPoolPrice {
		if err := r.applyPrice(ctx, n.Result); err != nil {
			errs = append(errs, err)
		}
	}

	if r.checkInvariants {
		var err error
		r.book.View(func(ob *orderbook.OrderBook) { err = r.check(ob) })
		if err != nil {
			errs = append(errs, err)
			if nerr := r.notifier.SendWithRetry(fmt.Sprintf("order book check failed: %v", err)); nerr != nil {
				logger.Error().Err(nerr).Msg("Failed to send invariant notification")
			}
		}
	}

	snapshot := r.book.Snapshot()
	metrics.ObserveBook(snapshot)
	if r.storage != nil {
		if err := r.storage.SaveBookRecord(ctx, market.NewBookRecord(snapshot, r.now())); err != nil {
			logger.Error().Err(err).Msg("Failed to save book record")
		}
	}
	if logger.GetLevel() <= zerolog.DebugLevel {
		var book string
		r.book.View(func(ob *orderbook.OrderBook) { book = ob.String() })
		logger.Debug().Str("method", n.Method).Msg("Order book refreshed\n" + book)
	}

	return errors.Join(errs...)
}

func (r *Runner) reload(ctx context.Context) error {
	var base, quote string
	r.book.View(func(ob *orderbook.OrderBook) { base, quote = ob.BaseAsset(), ob.QuoteAsset() })

	snapshot, err := r.source.PoolLiquidity(ctx, base, quote)
	if err == nil {
		err = r.book.Update(func(ob *orderbook.OrderBook) error { return ob.LoadSnapshot(snapshot) })
	}
	if err != nil {
		metrics.SnapshotLoadsTotal.WithLabelValues(metrics.ResultError).Inc()
		return fmt.Errorf("load liquidity: %w", err)
	}
	metrics.SnapshotLoadsTotal.WithLabelValues(metrics.ResultOK).Inc()
	return nil
}

func (r *Runner) applyPrice(ctx context.Context, result json.RawMessage) error {
	var update orderbook.PriceUpdate
	err := json.Unmarshal(result, &update)
	if err != nil {
		err = fmt.Errorf("%w: %v", orderbook.ErrMalformedFeedPayload, err)
	} else {
		err = r.book.Update(func(ob *orderbook.OrderBook) error { return ob.ApplyPriceUpdate(&update) })
	}
	if err != nil {
		metrics.PriceUpdatesTotal.WithLabelValues(metrics.ResultError).Inc()
		return fmt.Errorf("apply price: %w", err)
	}
	metrics.PriceUpdatesTotal.WithLabelValues(metrics.ResultOK).Inc()
	r.crossCheckTick(ctx)

	if r.storage == nil {
		return nil
	}
	s := r.book.Snapshot()
	tick := market.PriceTick{
		BaseAsset:   s.BaseAsset,
		QuoteAsset:  s.QuoteAsset,
		Price:       s.LastPrice,
		MarketPrice: s.MarketPrice,
		Tick:        s.LastTick,
		Timestamp:   r.now(),
	}
	if err := r.storage.SavePriceTick(ctx, tick); err != nil {
		utils.GetLogger().Error().Err(err).Msg("Failed to save price tick")
	}
	return nil
}

// crossCheckTick flags a price update whose tick is more than one tick away
// from the tick implied by its fixed point price.
func (r *Runner) crossCheckTick(ctx context.Context) {
	var (
		price *big.Int
		tick  tickmath.Tick
	)
	r.book.View(func(ob *orderbook.OrderBook) { price, tick = ob.LastPrice(), ob.LastTick() })

	implied, err := tickmath.FixedPriceToTick(price)
	if err == nil {
		diff := int64(implied) - int64(tick)
		if diff >= -1 && diff <= 1 {
			return
		}
	}
	metrics.PriceTickMismatchesTotal.Inc()
	utils.GetLogger().Warn().Err(err).Int32("tick", int32(tick)).Int32("implied_tick", int32(implied)).
		Msg("Pool price disagrees with its tick")
	r.journal(ctx, "price_tick_mismatch", "pool price disagrees with its tick", map[string]any{
		"price":        tickmath.EncodeHex(price),
		"tick":         int32(tick),
		"implied_tick": int32(implied),
	})
}

func (r *Runner) journal(ctx context.Context, eventType, description string, data map[string]any) {
	if r.storage == nil {
		return
	}
	event := db.Event{Time: r.now(), Type: eventType, Description: description, Data: data}
	if err := r.storage.LogEvent(ctx, event); err != nil {
		utils.GetLogger().Error().Err(err).Msg("Failed to journal event")
	}
}
