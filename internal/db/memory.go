package db

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

var ErrClosed = errors.New("storage closed")

// MemoryStorage keeps the journal in process. It is used when no database is
// configured and in tests.
type MemoryStorage struct {
	mu sync.RWMutex

	// Records and price ticks keyed by BASE/QUOTE
	records map[string][]BookRecord
	ticks   map[string][]PriceTick

	// Events (append-only)
	events []Event

	closed bool
}

func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string][]BookRecord),
		ticks:   make(map[string][]PriceTick),
		events:  make([]Event, 0, 1024),
	}
}

func pairKey(baseAsset, quoteAsset string) string {
	return strings.ToUpper(baseAsset) + "/" + strings.ToUpper(quoteAsset)
}

func inRange(ts, start, end time.Time) bool {
	return (ts.Equal(start) || ts.After(start)) && ts.Before(end)
}

func (m *MemoryStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return ctx.Err()
}

func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// -------- MarketManager --------

func (m *MemoryStorage) SaveBookRecord(ctx context.Context, r BookRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	r.Timestamp = r.Timestamp.UTC()
	key := pairKey(r.BaseAsset, r.QuoteAsset)
	m.records[key] = append(m.records[key], r)
	return nil
}

func (m *MemoryStorage) GetBookRecords(ctx context.Context, baseAsset, quoteAsset string, start, end time.Time) ([]BookRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start = start.UTC()
	end = end.UTC()
	var out []BookRecord
	for _, r := range m.records[pairKey(baseAsset, quoteAsset)] {
		if inRange(r.Timestamp, start, end) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryStorage) SavePriceTick(ctx context.Context, tick PriceTick) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	tick.Timestamp = tick.Timestamp.UTC()
	key := pairKey(tick.BaseAsset, tick.QuoteAsset)
	m.ticks[key] = append(m.ticks[key], tick)
	return nil
}

func (m *MemoryStorage) GetPriceTicks(ctx context.Context, baseAsset, quoteAsset string, start, end time.Time) ([]PriceTick, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start = start.UTC()
	end = end.UTC()
	var out []PriceTick
	for _, t := range m.ticks[pairKey(baseAsset, quoteAsset)] {
		if inRange(t.Timestamp, start, end) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// -------- Journaler --------

func (m *MemoryStorage) LogEvent(ctx context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	event.Time = event.Time.UTC()
	m.events = append(m.events, event)
	return nil
}

// GetEvents returns events of eventType with start <= time <= end.
func (m *MemoryStorage) GetEvents(ctx context.Context, eventType string, start, end time.Time) ([]Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start = start.UTC()
	end = end.UTC()
	var out []Event
	for _, e := range m.events {
		if e.Type != eventType {
			continue
		}
		if e.Time.Before(start) || e.Time.After(end) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

var (
	_ Storage = (*MemoryStorage)(nil)
	_ Storage = (*Default)(nil)
)
