package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/market"
	"github.com/rustyeddy/papertrader/metrics"
	"github.com/rustyeddy/papertrader/pricing"
	"github.com/rustyeddy/papertrader/sim"
	"github.com/shopspring/decimal"
)

// --- Request/Response types ---

// OrderRequest is the JSON body for POST /api/v1/orders. Price is the
// reference price; when omitted it comes from the quote gateway. Orders
// accept it only when the server allows client prices; quotes always do.
type OrderRequest struct {
	Symbol     string           `json:"symbol"`
	Side       string           `json:"side"`
	Type       string           `json:"type"`
	Quantity   int64            `json:"quantity"`
	LimitPrice *decimal.Decimal `json:"limit_price,omitempty"`
	StopPrice  *decimal.Decimal `json:"stop_price,omitempty"`
	Price      *decimal.Decimal `json:"price,omitempty"`
}

func (o OrderRequest) toBroker() broker.OrderRequest {
	return broker.OrderRequest{
		Symbol:     o.Symbol,
		Side:       broker.Side(strings.ToLower(strings.TrimSpace(o.Side))),
		Type:       broker.OrderType(strings.ToLower(strings.TrimSpace(o.Type))),
		Quantity:   o.Quantity,
		LimitPrice: o.LimitPrice,
		StopPrice:  o.StopPrice,
	}
}

// OrderResponse is returned from POST /api/v1/orders.
type OrderResponse struct {
	broker.Result
	ReferencePrice decimal.Decimal `json:"reference_price"`
	Trade          *journal.Trade  `json:"trade,omitempty"`
	Portfolio      *sim.Portfolio  `json:"portfolio,omitempty"`
	Warning        string          `json:"warning,omitempty"`
}

type QuoteResponse struct {
	ReferencePrice decimal.Decimal `json:"reference_price"`
	sim.Fill
	Affordable bool `json:"affordable"`
}

type WatchRequest struct {
	Symbol string `json:"symbol"`
}

// --- HTTP Handlers ---

// PlaceOrder handles POST /api/v1/orders
func (s *Server) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var body OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req := body.toBroker()
	if body.Price != nil && !s.allowClientPrice {
		writeError(w, "price is set by the quote gateway; omit it", http.StatusBadRequest)
		return
	}

	ref, err := s.referencePrice(r, body)
	if err != nil {
		s.writeQuoteError(w, err)
		return
	}

	start := time.Now()
	x, saveErr := s.engine.Execute(r.Context(), req, ref)
	metrics.ObserveOrder(req, x.Result, time.Since(start))

	resp := OrderResponse{Result: x.Result, ReferencePrice: ref}
	if !x.Accepted {
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	resp.Trade = x.Trade
	resp.Portfolio = &x.Portfolio
	metrics.ObservePortfolio(x.Portfolio)

	if saveErr != nil {
		s.saveFailed(saveErr)
		resp.Warning = saveErr.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}

// QuoteOrder handles POST /api/v1/orders/quote. Nothing is executed.
func (s *Server) QuoteOrder(w http.ResponseWriter, r *http.Request) {
	var body OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req := body.toBroker()
	if req.Quantity <= 0 || broker.NormalizeSymbol(req.Symbol) == "" {
		writeError(w, "symbol and a positive quantity are required", http.StatusBadRequest)
		return
	}

	ref, err := s.referencePrice(r, body)
	if err != nil {
		s.writeQuoteError(w, err)
		return
	}
	if !ref.IsPositive() {
		writeError(w, "price must be positive", http.StatusBadRequest)
		return
	}

	fill := s.engine.Quote(req, ref)
	writeJSON(w, http.StatusOK, QuoteResponse{
		ReferencePrice: ref,
		Fill:           fill,
		Affordable:     req.Side != broker.Buy || !fill.Total.GreaterThan(s.engine.Portfolio().Cash),
	})
}

// referencePrice uses the explicit price or asks the gateway. Orders the
// engine will reject before pricing get a zero price and no quote.
func (s *Server) referencePrice(r *http.Request, body OrderRequest) (decimal.Decimal, error) {
	if body.Price != nil {
		return *body.Price, nil
	}
	if body.Quantity <= 0 || broker.NormalizeSymbol(body.Symbol) == "" {
		return decimal.Zero, nil
	}
	q, err := s.prices.Quote(r.Context(), body.Symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return q.Price, nil
}

// GetPortfolio handles GET /api/v1/portfolio
func (s *Server) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	p := s.engine.Portfolio()
	writeJSON(w, http.StatusOK, map[string]any{
		"portfolio":     p,
		"starting_cash": s.engine.StartingCash(),
		"net_pl":        p.NetPL(),
	})
}

// GetHistory handles GET /api/v1/portfolio/history
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.History())
}

// GetPosition handles GET /api/v1/positions/{symbol}
func (s *Server) GetPosition(w http.ResponseWriter, r *http.Request) {
	pos, ok := s.engine.Position(chi.URLParam(r, "symbol"))
	if !ok {
		writeError(w, "no open position", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// ListTrades handles GET /api/v1/trades?symbol=&side=&limit=&format=json|csv|org
func (s *Server) ListTrades(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	trades := s.engine.Trades(f)

	switch r.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, trades)
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="trades.csv"`)
		if err := journal.WriteCSV(w, trades); err != nil {
			s.log.Error("write trades csv", "err", err)
		}
	case "org":
		w.Header().Set("Content-Type", "text/org; charset=utf-8")
		_, _ = w.Write([]byte(journal.FormatTradesOrg(trades)))
	default:
		writeError(w, "format must be json, csv or org", http.StatusBadRequest)
	}
}

func parseFilter(r *http.Request) (journal.Filter, error) {
	q := r.URL.Query()
	f := journal.Filter{Symbol: q.Get("symbol")}

	if side := q.Get("side"); side != "" {
		s, err := broker.ParseSide(side)
		if err != nil {
			return f, err
		}
		f.Side = s
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return f, errors.New("limit must be a non-negative integer")
		}
		f.Limit = n
	}
	if since := q.Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return f, errors.New("since must be an RFC 3339 time")
		}
		f.Since = t
	}
	return f, nil
}

// GetSummary handles GET /api/v1/trades/summary
func (s *Server) GetSummary(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, journal.Summarize(s.engine.Trades(f)))
}

// GetTrade handles GET /api/v1/trades/{tradeID}
func (s *Server) GetTrade(w http.ResponseWriter, r *http.Request) {
	t, ok := s.engine.Trade(chi.URLParam(r, "tradeID"))
	if !ok {
		writeError(w, "trade not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// GetWatchlist handles GET /api/v1/watchlist
func (s *Server) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Watchlist())
}

// AddToWatchlist handles POST /api/v1/watchlist
func (s *Server) AddToWatchlist(w http.ResponseWriter, r *http.Request) {
	var body WatchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if broker.NormalizeSymbol(body.Symbol) == "" {
		writeError(w, "symbol is required", http.StatusBadRequest)
		return
	}

	added, err := s.engine.AddToWatchlist(r.Context(), body.Symbol)
	if err != nil {
		s.saveFailed(err)
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, s.engine.Watchlist())
}

// RemoveFromWatchlist handles DELETE /api/v1/watchlist/{symbol}
func (s *Server) RemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	removed, err := s.engine.RemoveFromWatchlist(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		s.saveFailed(err)
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !removed {
		writeError(w, "symbol not on watchlist", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RefreshPrices handles POST /api/v1/prices/refresh
func (s *Server) RefreshPrices(w http.ResponseWriter, r *http.Request) {
	rep, err := s.refresher.Refresh(r.Context())
	if err != nil {
		s.saveFailed(err)
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	p := s.engine.Portfolio()
	metrics.ObservePortfolio(p)
	writeJSON(w, http.StatusOK, map[string]any{
		"report":    rep,
		"portfolio": p,
	})
}

// ListQuotes handles GET /api/v1/quotes, the last quote seen per symbol.
func (s *Server) ListQuotes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.prices.Recent())
}

// GetQuote handles GET /api/v1/quotes/{symbol}
func (s *Server) GetQuote(w http.ResponseWriter, r *http.Request) {
	q, err := s.prices.Quote(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		s.writeQuoteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// Reset handles POST /api/v1/reset
func (s *Server) Reset(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Reset(r.Context()); err != nil {
		s.saveFailed(err)
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	p := s.engine.Portfolio()
	metrics.ObservePortfolio(p)
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) saveFailed(err error) {
	metrics.SaveErrors.Inc()
	s.log.Error("persist state", "err", err)
}

func (s *Server) writeQuoteError(w http.ResponseWriter, err error) {
	if errors.Is(err, pricing.ErrUnavailable) || errors.Is(err, market.ErrNoQuote) {
		writeError(w, err.Error(), http.StatusBadGateway)
		return
	}
	writeError(w, err.Error(), http.StatusBadRequest)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
