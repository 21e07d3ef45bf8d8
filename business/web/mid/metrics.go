package mid

import (
	"context"
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"

	"github.com/ardanlabs/ubilog/foundation/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ubilog",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Requests served by the node api.",
	}, []string{"method", "code"})

	requestErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ubilog",
		Subsystem: "http",
		Name:      "errors_total",
		Help:      "Requests whose handler returned an error.",
	})

	goroutines = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ubilog",
		Subsystem: "http",
		Name:      "goroutines",
		Help:      "Goroutines sampled every 100 requests.",
	})

	served atomic.Int64
)

// Metrics updates program counters.
func Metrics() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := handler(ctx, w, r)

			code := http.StatusOK
			if v, verr := web.GetValues(ctx); verr == nil && v.StatusCode != 0 {
				code = v.StatusCode
			}
			requests.WithLabelValues(r.Method, strconv.Itoa(code)).Inc()

			// Sample the number of goroutines every 100 requests.
			if served.Add(1)%100 == 0 {
				goroutines.Set(float64(runtime.NumGoroutine()))
			}

			if err != nil {
				requestErrors.Inc()
			}

			return err
		}

		return h
	}

	return m
}
