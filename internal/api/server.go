// Package api serves a read-only HTTP view of the mirrored book.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/LoShan17/loshan-chainflip-challenge/internal/db"
	"github.com/LoShan17/loshan-chainflip-challenge/internal/metrics"
	"github.com/LoShan17/loshan-chainflip-challenge/internal/orderbook"
	"github.com/LoShan17/loshan-chainflip-challenge/internal/tickmath"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const defaultHistoryWindow = time.Hour

// HealthFunc reports why the service is unhealthy, nil when it is fine.
type HealthFunc func(ctx context.Context) error

type Server struct {
	book     *orderbook.Guarded
	storage  db.Storage
	registry *prometheus.Registry
	health   []HealthFunc
	logger   zerolog.Logger
}

type Option func(*Server)

func WithStorage(s db.Storage) Option {
	return func(srv *Server) { srv.storage = s }
}

func WithRegistry(reg *prometheus.Registry) Option {
	return func(srv *Server) { srv.registry = reg }
}

func WithHealthCheck(fn HealthFunc) Option {
	return func(srv *Server) { srv.health = append(srv.health, fn) }
}

func New(book *orderbook.Guarded, logger zerolog.Logger, opts ...Option) *Server {
	s := &Server{book: book, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Route("/book", func(r chi.Router) {
		r.Get("/", s.handleBook)
		r.Get("/top", s.handleTop)
		r.Get("/liquidity/{tick}", s.handleLiquidity)
	})
	if s.storage != nil {
		r.Route("/history", func(r chi.Router) {
			r.Get("/books", s.handleBookHistory)
			r.Get("/prices", s.handlePriceHistory)
			r.Get("/events/{type}", s.handleEvents)
		})
	}
	if s.registry != nil {
		r.Handle("/metrics", metrics.Handler(s.registry))
	}
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("rid", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("latency", time.Since(start)).
			Msg("http_request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var errs []error
	for _, check := range s.health {
		if err := check(r.Context()); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.book.Snapshot())
}

type topResponse struct {
	orderbook.TopOfBook
	BidPrice    float64       `json:"bid_price,omitempty"`
	AskPrice    float64       `json:"ask_price,omitempty"`
	HasPrice    bool          `json:"has_price"`
	LastPrice   string        `json:"last_price,omitempty"`
	LastTick    tickmath.Tick `json:"last_tick"`
	MarketPrice string        `json:"market_price,omitempty"`
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	var resp topResponse
	s.book.View(func(ob *orderbook.OrderBook) {
		resp.TopOfBook = ob.TopOfBook()
		if resp.HasBids {
			resp.BidPrice = ob.PriceAt(resp.BidMaxTick)
		}
		if resp.HasAsks {
			resp.AskPrice = ob.PriceAt(resp.AskMinTick)
		}
		if ob.HasPrice() {
			resp.HasPrice = true
			resp.LastPrice = tickmath.EncodeHex(ob.LastPrice())
			resp.LastTick = ob.LastTick()
			resp.MarketPrice = ob.MarketPrice()
		}
	})
	s.writeJSON(w, http.StatusOK, resp)
}

type liquidityResponse struct {
	Tick      tickmath.Tick `json:"tick"`
	Liquidity string        `json:"liquidity"`
}

func (s *Server) handleLiquidity(w http.ResponseWriter, r *http.Request) {
	v, err := strconv.ParseInt(chi.URLParam(r, "tick"), 10, 32)
	if err != nil || !tickmath.Tick(v).Valid() {
		s.writeError(w, http.StatusBadRequest, "tick must be an integer in [-887272, 887272]")
		return
	}
	tick := tickmath.Tick(v)
	var liquidity string
	s.book.View(func(ob *orderbook.OrderBook) {
		liquidity = tickmath.EncodeHex(ob.LiquidityAt(tick))
	})
	s.writeJSON(w, http.StatusOK, liquidityResponse{Tick: tick, Liquidity: liquidity})
}

func (s *Server) handleBookHistory(w http.ResponseWriter, r *http.Request) {
	start, end, ok := s.window(w, r)
	if !ok {
		return
	}
	base, quote := s.pair()
	records, err := s.storage.GetBookRecords(r.Context(), base, quote, start, end)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	start, end, ok := s.window(w, r)
	if !ok {
		return
	}
	base, quote := s.pair()
	ticks, err := s.storage.GetPriceTicks(r.Context(), base, quote, start, end)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, ticks)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	start, end, ok := s.window(w, r)
	if !ok {
		return
	}
	events, err := s.storage.GetEvents(r.Context(), chi.URLParam(r, "type"), start, end)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, events)
}

func (s *Server) pair() (string, string) {
	var base, quote string
	s.book.View(func(ob *orderbook.OrderBook) { base, quote = ob.BaseAsset(), ob.QuoteAsset() })
	return base, quote
}

// window reads the RFC 3339 from and to query parameters. The default is the
// last hour.
func (s *Server) window(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	end := time.Now().UTC()
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid to: "+err.Error())
			return time.Time{}, time.Time{}, false
		}
		end = t
	}
	start := end.Add(-defaultHistoryWindow)
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid from: "+err.Error())
			return time.Time{}, time.Time{}, false
		}
		start = t
	}
	if !start.Before(end) {
		s.writeError(w, http.StatusBadRequest, "from must be before to")
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
