package metrics

import (
	"net/http"

	"github.com/LoShan17/loshan-chainflip-challenge/internal/orderbook"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	BidMaxTick = prometheus.NewGauge(prometheus.GaugeOpts{Name: "orderbook_bid_max_tick", Help: "Highest bid tick, MinTick when there are no bids"})
	AskMinTick = prometheus.NewGauge(prometheus.GaugeOpts{Name: "orderbook_ask_min_tick", Help: "Lowest ask tick, MaxTick when there are no asks"})
	LastTick   = prometheus.NewGauge(prometheus.GaugeOpts{Name: "orderbook_last_tick", Help: "Tick of the last pool price update"})
	Levels     = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "orderbook_levels", Help: "Number of stored price points by kind"}, []string{"kind"})

	SnapshotLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "snapshot_loads_total", Help: "Liquidity snapshot loads by result"}, []string{"result"})
	PriceUpdatesTotal  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "price_updates_total", Help: "Pool price updates by result"}, []string{"result"})
	WSReconnectsTotal  = prometheus.NewCounter(prometheus.CounterOpts{Name: "ws_reconnects_total", Help: "Subscription reconnects"})
	RPCErrorsTotal     = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "rpc_errors_total", Help: "Failed JSON-RPC queries by method"}, []string{"method"})
	RPCLatencyMs       = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "rpc_latency_ms", Help: "JSON-RPC query latency", Buckets: prometheus.ExponentialBuckets(1, 2, 14)}, []string{"method"})

	PriceTickMismatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "price_tick_mismatches_total", Help: "Price updates whose tick disagrees with the tick implied by the price"})
)

// Result labels
const (
	ResultOK    = "ok"
	ResultError = "error"
)

func Init(logger zerolog.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	toRegister := []prometheus.Collector{
		BidMaxTick, AskMinTick, LastTick, Levels,
		SnapshotLoadsTotal, PriceUpdatesTotal, PriceTickMismatchesTotal, WSReconnectsTotal, RPCErrorsTotal, RPCLatencyMs,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		_ = reg.Register(c)
	}
	logger.Info().Msg("Prometheus metrics initialized")
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ObserveBook sets the book gauges from s.
func ObserveBook(s orderbook.Snapshot) {
	BidMaxTick.Set(float64(s.BidMaxTick))
	AskMinTick.Set(float64(s.AskMinTick))
	if s.HasPrice {
		LastTick.Set(float64(s.LastTick))
	}
	Levels.WithLabelValues("bid").Set(float64(len(s.Bids)))
	Levels.WithLabelValues("ask").Set(float64(len(s.Asks)))
	Levels.WithLabelValues("range").Set(float64(len(s.Ranges)))
}
