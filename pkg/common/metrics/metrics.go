package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

type Metrics struct {
	gatherer         prometheus.Gatherer
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	flowResults      *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
}

// New registers the relay metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	promFactory := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		requestsTotal: promFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "spotify_auth_requests_total",
			Help: "Total number of requests served by the relay labelled by route and status",
		}, []string{"route", "status"}),
		requestDuration: promFactory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spotify_auth_request_duration_seconds",
			Help:    "Duration of requests served by the relay",
			Buckets: durationBuckets,
		}, []string{"route"}),
		flowResults: promFactory.NewCounterVec(prometheus.CounterOpts{
			Name: "spotify_auth_flow_results_total",
			Help: "Outcomes of the login, callback and refresh steps",
		}, []string{"step", "result"}),
		upstreamDuration: promFactory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spotify_auth_upstream_duration_seconds",
			Help:    "Duration of calls to the provider token endpoint",
			Buckets: durationBuckets,
		}, []string{"grant_type", "status"}),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Gatherer gives tests access to the collected families.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.gatherer }

// FlowResult counts one outcome of a flow step, e.g. ("callback", "state_mismatch").
func (m *Metrics) FlowResult(step, result string) {
	if m == nil {
		return
	}
	m.flowResults.WithLabelValues(step, result).Inc()
}

func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		start := time.Now()
		next.ServeHTTP(ww, r)
		duration := time.Since(start)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
		m.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
	})
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

type grantTypeKey struct{}

// WithGrantType labels outbound token calls made with ctx.
func WithGrantType(ctx context.Context, grantType string) context.Context {
	return context.WithValue(ctx, grantTypeKey{}, grantType)
}

// RoundTripper times token endpoint calls by grant type and upstream status.
func (m *Metrics) RoundTripper(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
		grant, _ := req.Context().Value(grantTypeKey{}).(string)
		if grant == "" {
			grant = "unknown"
		}

		start := time.Now()
		resp, err := next.RoundTrip(req)
		// 0 marks transport failures without a response
		status := "0"
		if err == nil {
			status = strconv.Itoa(resp.StatusCode)
		}
		m.upstreamDuration.WithLabelValues(grant, status).Observe(time.Since(start).Seconds())
		return resp, err
	})
}
