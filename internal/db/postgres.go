package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/LoShan17/loshan-chainflip-challenge/internal/db/conf"
	"github.com/LoShan17/loshan-chainflip-challenge/internal/tickmath"
	_ "github.com/lib/pq"
)

// executeWithTransaction runs fn in a new transaction, rolling back on error.
func (p *Default) executeWithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if fnErr := fn(tx); fnErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction rollback failed: %w (original error: %v)", rbErr, fnErr)
		}
		return fnErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("transaction commit failed: %w", commitErr)
	}
	return nil
}

// Default is the Postgres backed Storage.
type Default struct {
	db *sql.DB
}

func New(c conf.Config) (*Default, error) {
	if c.DB == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	return &Default{db: c.DB}, nil
}

func (p *Default) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Default) Close() error {
	return p.db.Close()
}

// Migrate applies the schema file statement by statement.
func (p *Default) Migrate(ctx context.Context, schemaPath string) error {
	schemaSQL, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", schemaPath, err)
	}
	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		for _, stmt := range strings.Split(string(schemaSQL), ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply schema statement %q: %w", stmt, err)
			}
		}
		return nil
	})
}

func (p *Default) SaveBookRecord(ctx context.Context, r BookRecord) error {
	bids, err := json.Marshal(r.Bids)
	if err != nil {
		return fmt.Errorf("failed to encode bids: %w", err)
	}
	asks, err := json.Marshal(r.Asks)
	if err != nil {
		return fmt.Errorf("failed to encode asks: %w", err)
	}
	ranges, err := json.Marshal(r.Ranges)
	if err != nil {
		return fmt.Errorf("failed to encode range orders: %w", err)
	}

	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO book_records (base_asset, quote_asset, timestamp, bid_max_tick, ask_min_tick, last_price, last_tick, bids, asks, range_orders)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			r.BaseAsset, r.QuoteAsset, r.Timestamp, int32(r.BidMaxTick), int32(r.AskMinTick), r.LastPrice, int32(r.LastTick), bids, asks, ranges)
		if err != nil {
			return fmt.Errorf("failed to save book record for %s/%s at %s: %w", r.BaseAsset, r.QuoteAsset, r.Timestamp, err)
		}
		return nil
	})
}

func (p *Default) GetBookRecords(ctx context.Context, baseAsset, quoteAsset string, start, end time.Time) ([]BookRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT base_asset, quote_asset, timestamp, bid_max_tick, ask_min_tick, last_price, last_tick, bids, asks, range_orders
		FROM book_records
		WHERE base_asset=$1 AND quote_asset=$2 AND timestamp >= $3 AND timestamp < $4
		ORDER BY timestamp ASC`, baseAsset, quoteAsset, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query book records: %w", err)
	}
	defer rows.Close()

	var records []BookRecord
	for rows.Next() {
		var r BookRecord
		var bidMax, askMin, lastTick int32
		var bids, asks, ranges []byte
		if err := rows.Scan(&r.BaseAsset, &r.QuoteAsset, &r.Timestamp, &bidMax, &askMin, &r.LastPrice, &lastTick, &bids, &asks, &ranges); err != nil {
			return nil, fmt.Errorf("failed to scan book record: %w", err)
		}
		r.BidMaxTick, r.AskMinTick, r.LastTick = tickmath.Tick(bidMax), tickmath.Tick(askMin), tickmath.Tick(lastTick)
		if err := json.Unmarshal(bids, &r.Bids); err != nil {
			return nil, fmt.Errorf("failed to decode bids: %w", err)
		}
		if err := json.Unmarshal(asks, &r.Asks); err != nil {
			return nil, fmt.Errorf("failed to decode asks: %w", err)
		}
		if err := json.Unmarshal(ranges, &r.Ranges); err != nil {
			return nil, fmt.Errorf("failed to decode range orders: %w", err)
		}
		r.Timestamp = r.Timestamp.UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

func (p *Default) SavePriceTick(ctx context.Context, t PriceTick) error {
	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO price_ticks (base_asset, quote_asset, timestamp, price, market_price, tick)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			t.BaseAsset, t.QuoteAsset, t.Timestamp, t.Price, t.MarketPrice, int32(t.Tick))
		if err != nil {
			return fmt.Errorf("failed to save price tick: %w", err)
		}
		return nil
	})
}

func (p *Default) GetPriceTicks(ctx context.Context, baseAsset, quoteAsset string, start, end time.Time) ([]PriceTick, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT base_asset, quote_asset, timestamp, price, market_price, tick
		FROM price_ticks
		WHERE base_asset=$1 AND quote_asset=$2 AND timestamp >= $3 AND timestamp < $4
		ORDER BY timestamp ASC`, baseAsset, quoteAsset, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query price ticks: %w", err)
	}
	defer rows.Close()

	var ticks []PriceTick
	for rows.Next() {
		var t PriceTick
		var tk int32
		if err := rows.Scan(&t.BaseAsset, &t.QuoteAsset, &t.Timestamp, &t.Price, &t.MarketPrice, &tk); err != nil {
			return nil, fmt.Errorf("failed to scan price tick: %w", err)
		}
		t.Tick = tickmath.Tick(tk)
		t.Timestamp = t.Timestamp.UTC()
		ticks = append(ticks, t)
	}
	return ticks, rows.Err()
}

func (p *Default) LogEvent(ctx context.Context, event Event) error {
	return p.executeWithTransaction(ctx, func(tx *sql.Tx) error {
		data, err := json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("failed to encode event data: %w", err)
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO events (time, type, description, data) VALUES ($1,$2,$3,$4)`,
			event.Time, event.Type, event.Description, data)
		if err != nil {
			return fmt.Errorf("failed to log event: %w", err)
		}
		return nil
	})
}

func (p *Default) GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]Event, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT time, type, description, data FROM events WHERE type=$1 AND time >= $2 AND time <= $3 ORDER BY time ASC`, eventType, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var data []byte
		if err := rows.Scan(&e.Time, &e.Type, &e.Description, &data); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				return nil, fmt.Errorf("failed to decode event data: %w", err)
			}
		}
		e.Time = e.Time.UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}
