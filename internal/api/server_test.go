package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/LoShan17/loshan-chainflip-challenge/internal/db"
	"github.com/LoShan17/loshan-chainflip-challenge/internal/metrics"
	"github.com/LoShan17/loshan-chainflip-challenge/internal/orderbook"
	"github.com/LoShan17/loshan-chainflip-challenge/internal/tickmath"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBook(t *testing.T) *orderbook.Guarded {
	t.Helper()
	ob := orderbook.New("ETH", "USDC")
	require.NoError(t, ob.LoadSnapshot(&orderbook.LiquiditySnapshot{
		LimitOrders: &orderbook.LimitOrders{
			Bids: &[]orderbook.LimitLevel{{Tick: orderbook.TickPtr(-199320), Amount: "0x5f5e100"}},
			Asks: &[]orderbook.LimitLevel{{Tick: orderbook.TickPtr(-190000), Amount: "0x64"}},
		},
		RangeOrders: &[]orderbook.RangeLevel{
			{Tick: orderbook.TickPtr(-887272), Liquidity: "0x142bd6ddc3906"},
			{Tick: orderbook.TickPtr(-253298), Liquidity: "0x14420f0c7e9bf"},
			{Tick: orderbook.TickPtr(887272), Liquidity: "0x0"},
		},
	}))
	price := "0x393d4b7e97617d02dd59df31a5a9"
	require.NoError(t, ob.ApplyPriceUpdate(&orderbook.PriceUpdate{Price: &price, Tick: orderbook.TickPtr(-125890)}))
	return orderbook.NewGuarded(ob)
}

func get(t *testing.T, h http.Handler, path string) (int, []byte) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, body
}

func TestHealthz(t *testing.T) {
	var failing error
	srv := New(testBook(t), zerolog.Nop(), WithHealthCheck(func(context.Context) error { return failing }))
	h := srv.Routes()

	code, body := get(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", string(body))

	failing = errors.New("subscription disconnected")
	code, body = get(t, h, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, string(body), "subscription disconnected")
}

func TestBook(t *testing.T) {
	h := New(testBook(t), zerolog.Nop()).Routes()

	code, body := get(t, h, "/book")
	require.Equal(t, http.StatusOK, code)

	var snap orderbook.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, "ETH", snap.BaseAsset)
	assert.EqualValues(t, -199320, snap.BidMaxTick)
	assert.Len(t, snap.Ranges, 3)
	assert.Equal(t, "0x5f5e100", snap.Bids[0].Amount)
	assert.True(t, snap.HasPrice)
}

func TestTop(t *testing.T) {
	h := New(testBook(t), zerolog.Nop()).Routes()

	code, body := get(t, h, "/book/top")
	require.Equal(t, http.StatusOK, code)

	var top map[string]any
	require.NoError(t, json.Unmarshal(body, &top))
	assert.EqualValues(t, -199320, top["bid_max_tick"])
	assert.EqualValues(t, -190000, top["ask_min_tick"])
	assert.EqualValues(t, -125890, top["last_tick"])
	assert.Equal(t, "0x393d4b7e97617d02dd59df31a5a9", top["last_price"])
	assert.NotEmpty(t, top["market_price"])
	assert.Greater(t, top["ask_price"], top["bid_price"])
}

func TestTopMarketPriceMatchesLastPrice(t *testing.T) {
	book := testBook(t)
	h := New(book, zerolog.Nop()).Routes()

	eth, err := tickmath.Precision("ETH")
	require.NoError(t, err)
	usdc, err := tickmath.Precision("USDC")
	require.NoError(t, err)

	updates := []struct {
		price string
		tick  tickmath.Tick
	}{
		{price: "0x393d4b7e97617d02dd59df31a5a9", tick: -125890},
		{price: "0x4df1cb6985c724bf6d02fc7059f", tick: -150529},
	}
	want := map[string]string{}
	for _, u := range updates {
		raw, err := tickmath.HexToDecimal(u.price)
		require.NoError(t, err)
		want[u.price] = tickmath.PriceToMarketPrice(raw, eth, usdc).String()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2000; i++ {
			u := updates[i%2]
			_ = book.Update(func(ob *orderbook.OrderBook) error {
				return ob.ApplyPriceUpdate(&orderbook.PriceUpdate{Price: &u.price, Tick: orderbook.TickPtr(u.tick)})
			})
		}
	}()

	for i := 0; i < 200; i++ {
		code, body := get(t, h, "/book/top")
		require.Equal(t, http.StatusOK, code)
		var top topResponse
		require.NoError(t, json.Unmarshal(body, &top))
		require.Equal(t, want[top.LastPrice], top.MarketPrice, "last_price %s", top.LastPrice)
	}
	<-done
}

func TestTopEmptyBook(t *testing.T) {
	h := New(orderbook.NewGuarded(orderbook.New("ETH", "USDC")), zerolog.Nop()).Routes()

	code, body := get(t, h, "/book/top")
	require.Equal(t, http.StatusOK, code)

	var top map[string]any
	require.NoError(t, json.Unmarshal(body, &top))
	assert.EqualValues(t, tickmath.MinTick, top["bid_max_tick"])
	assert.EqualValues(t, tickmath.MaxTick, top["ask_min_tick"])
	assert.Equal(t, false, top["has_price"])
	assert.NotContains(t, top, "bid_price")
}

func TestLiquidity(t *testing.T) {
	h := New(testBook(t), zerolog.Nop()).Routes()

	tests := []struct {
		path   string
		status int
		want   string
	}{
		{path: "/book/liquidity/-300000", status: http.StatusOK, want: "0x142bd6ddc3906"},
		{path: "/book/liquidity/-253298", status: http.StatusOK, want: "0x14420f0c7e9bf"},
		{path: "/book/liquidity/0", status: http.StatusOK, want: "0x14420f0c7e9bf"},
		{path: "/book/liquidity/887272", status: http.StatusOK, want: "0x0"},
		{path: "/book/liquidity/887273", status: http.StatusBadRequest},
		{path: "/book/liquidity/abc", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			code, body := get(t, h, tt.path)
			require.Equal(t, tt.status, code)
			if tt.status != http.StatusOK {
				return
			}
			var resp map[string]any
			require.NoError(t, json.Unmarshal(body, &resp))
			assert.Equal(t, tt.want, resp["liquidity"])
		})
	}
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	book := testBook(t)
	storage := db.NewMemory()
	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	snap := book.Snapshot()
	require.NoError(t, storage.SaveBookRecord(ctx, db.BookRecord{BaseAsset: "ETH", QuoteAsset: "USDC", BidMaxTick: snap.BidMaxTick, Timestamp: ts}))
	require.NoError(t, storage.SavePriceTick(ctx, db.PriceTick{BaseAsset: "ETH", QuoteAsset: "USDC", Tick: -125890, Timestamp: ts}))
	require.NoError(t, storage.LogEvent(ctx, db.Event{Time: ts, Type: "error", Description: "boom"}))

	h := New(book, zerolog.Nop(), WithStorage(storage)).Routes()
	window := "?from=2024-05-01T09:00:00Z&to=2024-05-01T11:00:00Z"

	code, body := get(t, h, "/history/books"+window)
	require.Equal(t, http.StatusOK, code)
	var records []db.BookRecord
	require.NoError(t, json.Unmarshal(body, &records))
	require.Len(t, records, 1)
	assert.EqualValues(t, -199320, records[0].BidMaxTick)

	code, body = get(t, h, "/history/prices"+window)
	require.Equal(t, http.StatusOK, code)
	var ticks []db.PriceTick
	require.NoError(t, json.Unmarshal(body, &ticks))
	require.Len(t, ticks, 1)

	code, body = get(t, h, "/history/events/error"+window)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "boom")

	code, _ = get(t, h, "/history/books?from=yesterday")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = get(t, h, "/history/books?from=2024-05-01T11:00:00Z&to=2024-05-01T09:00:00Z")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHistoryDisabledWithoutStorage(t *testing.T) {
	h := New(testBook(t), zerolog.Nop()).Routes()
	code, _ := get(t, h, "/history/books")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMetricsRoute(t *testing.T) {
	reg := metrics.Init(zerolog.Nop())
	h := New(testBook(t), zerolog.Nop(), WithRegistry(reg)).Routes()
	code, body := get(t, h, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(body), "go_goroutines")
}
