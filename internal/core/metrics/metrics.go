package metrics

import "github.com/prometheus/client_golang/prometheus"

// 业务指标；HTTP 指标见 middleware.Metrics
var (
	Engagements = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "doof_engagements_total", Help: "Engagement events by item and engagement type"},
		[]string{"item_type", "engagement_type"},
	)
	ListItemsAdded = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "doof_list_items_added_total", Help: "Items added to lists"},
		[]string{"item_type"},
	)
	BulkResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "doof_bulk_add_results_total", Help: "Bulk add outcomes per item"},
		[]string{"status"},
	)
	PlacesRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "doof_places_requests_total", Help: "Places API calls"},
		[]string{"endpoint", "result"},
	)
)

func init() {
	prometheus.MustRegister(Engagements, ListItemsAdded, BulkResults, PlacesRequests)
}
