package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus records checkout and HTTP metrics in a registry.
type Prometheus struct {
	registry  *prometheus.Registry
	checkouts *prometheus.CounterVec
	orders    prometheus.Counter
	latency   *prometheus.HistogramVec
	requests  *prometheus.CounterVec
}

// NewPrometheus registers the collectors on a fresh registry.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_attempts_total",
			Help: "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		orders: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "checkout_orders_created_total",
			Help: "Orders created by checkouts.",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "checkout_duration_seconds",
			Help:    "Checkout latency by outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
	}
	p.registry.MustRegister(p.checkouts, p.orders, p.latency, p.requests)
	return p
}

func (p *Prometheus) Checkout(_ context.Context, outcome string, orders int, elapsed time.Duration) {
	p.checkouts.WithLabelValues(outcome).Inc()
	p.latency.WithLabelValues(outcome).Observe(elapsed.Seconds())
	if outcome == OutcomePlaced {
		p.orders.Add(float64(orders))
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

// Middleware counts requests by matched route.
func (p *Prometheus) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		p.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
