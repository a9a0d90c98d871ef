package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	AuthEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pharmacy", Subsystem: "auth", Name: "events_total",
		Help: "Auth operations by outcome",
	}, []string{"op", "outcome"})

	TokensPurged = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "pharmacy", Subsystem: "auth", Name: "refresh_tokens_purged_total",
		Help: "Expired refresh token rows deleted by the sweep",
	})

	InventoryMutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pharmacy", Subsystem: "inventory", Name: "mutations_total",
		Help: "Category and medicine writes",
	}, []string{"entity", "action"})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pharmacy", Subsystem: "http", Name: "requests_total",
		Help: "Handled HTTP requests",
	}, []string{"method", "route", "status"})

	HTTPLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pharmacy", Subsystem: "http", Name: "request_duration_seconds",
		Help:    "Latency of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// Register adds every collector to r (DefaultRegisterer when nil). Duplicate
// registration is ignored.
func Register(r prometheus.Registerer) {
	once.Do(func() {
		if r == nil {
			r = prometheus.DefaultRegisterer
		}
		collectors := []prometheus.Collector{
			AuthEvents, TokensPurged, InventoryMutations, HTTPRequests, HTTPLatency,
		}
		for _, c := range collectors {
			if err := r.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					panic(err)
				}
			}
		}
	})
}

// Recorder satisfies the service-side hooks.
type Recorder struct{}

func (Recorder) AuthEvent(op, outcome string) {
	AuthEvents.WithLabelValues(op, outcome).Inc()
}

func (Recorder) TokensPurged(n int64) {
	TokensPurged.Add(float64(n))
}

func (Recorder) InventoryMutation(entity, action string) {
	InventoryMutations.WithLabelValues(entity, action).Inc()
}

// Middleware labels by route template, not raw path, to keep cardinality flat.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if status < 400 {
					status = 500
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			HTTPLatency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
