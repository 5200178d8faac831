// Package metrics provides Prometheus instrumentation for the energy pool.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PurchasesTotal counts buy attempts by outcome.
	PurchasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "powershare_purchases_total",
		Help: "Energy pool purchases by outcome",
	}, []string{"outcome"})

	PurchaseLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "powershare_purchase_latency_seconds",
		Help:    "Purchase execution latency in seconds",
		Buckets: prometheus.DefBuckets,
	})

	UnitsTraded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "powershare_units_traded_total",
		Help: "Units moved from sell pools to buyers",
	})

	UnitsListed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "powershare_units_listed_total",
		Help: "Units moved from grid inventory into sell pools",
	})

	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "powershare_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "powershare_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "powershare_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "route"})
)

// Purchase outcomes.
const (
	OutcomeCompleted    = "completed"
	OutcomeInsufficient = "insufficient_inventory"
	OutcomeRejected     = "rejected"
	OutcomeError        = "error"
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request metrics labelled by chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
