package info

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors of the info server
type Metrics struct {
	Requests        *prometheus.CounterVec
	ResolveFailures prometheus.Counter
	NodeCountErrors prometheus.Counter
}

// NewMetrics registers the collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scaledemo_requests_total",
			Help: "Requests served, by route and status code",
		}, []string{"route", "code"}),
		ResolveFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "scaledemo_resolve_failures_total",
			Help: "Pod IP lookups that fell back to the placeholder address",
		}),
		NodeCountErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "scaledemo_node_count_errors_total",
			Help: "Failed attempts to read the cluster node count",
		}),
	}
}

// instrument counts every request that reaches the route.
func (m *Metrics) instrument(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		})
	}
}
