package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the collection pipeline.
type Metrics struct {
	CollectorRequests *prometheus.CounterVec
	ItemsFetched      *prometheus.CounterVec
	ItemsSkipped      *prometheus.CounterVec
	Mentions          *prometheus.CounterVec
	CycleDuration     prometheus.Histogram
}

// New registers the pipeline metrics with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CollectorRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collector_requests_total",
			Help: "Collection attempts by platform and result",
		}, []string{"platform", "result"}),
		ItemsFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "collector_items_total",
			Help: "Raw items fetched by platform",
		}, []string{"platform"}),
		ItemsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aggregator_items_skipped_total",
			Help: "Items skipped during aggregation by reason",
		}, []string{"platform", "reason"}),
		Mentions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "aggregator_mentions_total",
			Help: "Mention records emitted by platform and category",
		}, []string{"platform", "category"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "collection_cycle_duration_seconds",
			Help:    "Wall time of one full collection cycle",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
