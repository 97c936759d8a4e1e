// Package api is the JSON HTTP surface over one paper trading engine.
//
// All amounts are decimal strings; nothing crosses the wire as a float.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rustyeddy/papertrader/metrics"
	"github.com/rustyeddy/papertrader/pricing"
	"github.com/rustyeddy/papertrader/sim"
)

// Server handles requests for a single engine. The engine serializes its
// own mutations, so handlers need no locking.
type Server struct {
	engine    *sim.Engine
	prices    *pricing.Gateway
	refresher *pricing.Refresher
	log       *slog.Logger

	allowClientPrice bool
}

func NewServer(engine *sim.Engine, prices *pricing.Gateway, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		engine:    engine,
		prices:    prices,
		refresher: pricing.NewRefresher(prices, engine, log),
		log:       log,
	}
}

// AllowClientPrice lets order requests carry their own reference price.
// Off by default: orders fill at a gateway quote.
func (s *Server) AllowClientPrice(ok bool) {
	s.allowClientPrice = ok
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	r.Get("/health", s.Health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/orders", s.PlaceOrder)
		r.Post("/orders/quote", s.QuoteOrder)

		r.Get("/portfolio", s.GetPortfolio)
		r.Get("/portfolio/history", s.GetHistory)
		r.Get("/positions/{symbol}", s.GetPosition)

		r.Get("/trades", s.ListTrades)
		r.Get("/trades/summary", s.GetSummary)
		r.Get("/trades/{tradeID}", s.GetTrade)

		r.Get("/watchlist", s.GetWatchlist)
		r.Post("/watchlist", s.AddToWatchlist)
		r.Delete("/watchlist/{symbol}", s.RemoveFromWatchlist)

		r.Post("/prices/refresh", s.RefreshPrices)
		r.Get("/quotes", s.ListQuotes)
		r.Get("/quotes/{symbol}", s.GetQuote)

		r.Post("/reset", s.Reset)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"took", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// Health handles GET /health
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"service":      "papertrader",
		"live_pricing": s.prices.Live(),
	})
}
