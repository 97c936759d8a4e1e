package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/sim"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestObserveOrder(t *testing.T) {
	req := broker.OrderRequest{Side: broker.Sell, Type: broker.Stop}
	before := testutil.ToFloat64(OrderRejections.WithLabelValues(string(broker.InsufficientShares)))

	ObserveOrder(req, broker.Rejected(broker.InsufficientShares), time.Millisecond)
	ObserveOrder(req, broker.Accepted("T1"), time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(OrderRejections.WithLabelValues(string(broker.InsufficientShares))))
	assert.GreaterOrEqual(t, testutil.ToFloat64(OrdersTotal.WithLabelValues("sell", "stop", "accepted")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(OrdersTotal.WithLabelValues("sell", "stop", "rejected")), 1.0)
}

func TestObservePortfolio(t *testing.T) {
	ObservePortfolio(sim.Portfolio{
		Cash:           decimal.RequireFromString("998497.75"),
		PositionsValue: decimal.RequireFromString("1500.75"),
		TotalValue:     decimal.RequireFromString("999998.5"),
		Positions:      []sim.Position{{Symbol: "AAPL"}},
	})

	assert.Equal(t, 998497.75, testutil.ToFloat64(Cash))
	assert.Equal(t, 999998.5, testutil.ToFloat64(TotalValue))
	assert.Equal(t, 1.0, testutil.ToFloat64(OpenPositions))
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/quotes/{symbol}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/quotes/AAPL", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/quotes/{symbol}", "418")))
}
