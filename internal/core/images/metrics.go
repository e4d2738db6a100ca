package images

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the pipeline's prometheus counters.
type Metrics struct {
	// CacheLookups counts read-through lookups by tier ("original", "scaled")
	// and result ("hit", "miss").
	CacheLookups *prometheus.CounterVec

	// Coalesced counts requests whose result was shared with another caller, by tier.
	Coalesced *prometheus.CounterVec

	Fetches          prometheus.Counter
	FetchErrors      prometheus.Counter
	Scales           prometheus.Counter
	StoreWriteErrors prometheus.Counter
}

// NewMetrics creates the counters and registers them with reg.
// A nil reg leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "verygoods",
			Subsystem: "images",
			Name:      "cache_lookups_total",
			Help:      "Read-through cache lookups by tier and result.",
		}, []string{"tier", "result"}),
		Coalesced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "verygoods",
			Subsystem: "images",
			Name:      "coalesced_requests_total",
			Help:      "Requests whose result was shared with another caller.",
		}, []string{"tier"}),
		Fetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "verygoods",
			Subsystem: "images",
			Name:      "fetches_total",
			Help:      "Image downloads started.",
		}),
		FetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "verygoods",
			Subsystem: "images",
			Name:      "fetch_errors_total",
			Help:      "Image downloads that failed.",
		}),
		Scales: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "verygoods",
			Subsystem: "images",
			Name:      "scales_total",
			Help:      "Scaled renditions produced.",
		}),
		StoreWriteErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "verygoods",
			Subsystem: "images",
			Name:      "store_write_errors_total",
			Help:      "Background cache writes that failed.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.CacheLookups,
			m.Coalesced,
			m.Fetches,
			m.FetchErrors,
			m.Scales,
			m.StoreWriteErrors,
		)
	}
	return m
}
