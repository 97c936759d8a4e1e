// Package metrics provides Prometheus instrumentation for the paper trader.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/sim"
)

var (
	// OrdersTotal counts executed orders by side, type and outcome.
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrader_orders_total",
		Help: "Orders submitted, by side, type and outcome",
	}, []string{"side", "type", "outcome"})

	// OrderRejections counts rejected orders by reason.
	OrderRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrader_order_rejections_total",
		Help: "Orders rejected, by reason",
	}, []string{"reason"})

	OrderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "papertrader_order_latency_seconds",
		Help:    "Order execution latency in seconds, including the snapshot save",
		Buckets: prometheus.DefBuckets,
	}, []string{"side"})

	Cash = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "papertrader_cash",
		Help: "Available cash",
	})

	PositionsValue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "papertrader_positions_value",
		Help: "Market value of open positions",
	})

	TotalValue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "papertrader_total_value",
		Help: "Cash plus positions value",
	})

	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "papertrader_open_positions",
		Help: "Number of symbols currently held",
	})

	// QuotesTotal counts resolved quotes by source.
	QuotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrader_quotes_total",
		Help: "Quotes resolved, by source",
	}, []string{"source"})

	QuoteFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "papertrader_quote_fallbacks_total",
		Help: "Quotes served from synthetic data after the provider failed",
	})

	// SaveErrors counts snapshot saves that failed after a mutation.
	SaveErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "papertrader_snapshot_save_errors_total",
		Help: "Snapshot saves that failed",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrader_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "papertrader_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveOrder records one ExecuteOrder call.
func ObserveOrder(req broker.OrderRequest, res broker.Result, took time.Duration) {
	outcome := "accepted"
	if !res.Accepted {
		outcome = "rejected"
		OrderRejections.WithLabelValues(string(res.Reason)).Inc()
	}
	OrdersTotal.WithLabelValues(string(req.Side), string(req.Type), outcome).Inc()
	OrderLatency.WithLabelValues(string(req.Side)).Observe(took.Seconds())
}

// ObservePortfolio sets the valuation gauges.
func ObservePortfolio(p sim.Portfolio) {
	Cash.Set(p.Cash.InexactFloat64())
	PositionsValue.Set(p.PositionsValue.InexactFloat64())
	TotalValue.Set(p.TotalValue.InexactFloat64())
	OpenPositions.Set(float64(len(p.Positions)))
}

// Middleware records request metrics. The path label is the chi route
// pattern when one matched, so symbols in URLs do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				path = p
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
