package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChatRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopassist_chat_requests_total",
			Help: "Total number of chat replies by source",
		},
		[]string{"source"},
	)

	ChatRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shopassist_chat_rejected_total",
			Help: "Total number of chat requests rejected by validation",
		},
	)

	PurchaseIntent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopassist_purchase_intent_total",
			Help: "Purchase intent likelihood of scored chat requests",
		},
		[]string{"likelihood"},
	)

	OracleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopassist_oracle_duration_seconds",
			Help:    "Duration of generative AI calls in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"provider", "outcome"},
	)

	FeedbackReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopassist_feedback_total",
			Help: "Total number of feedback ratings received",
		},
		[]string{"rating"},
	)
)

// RatingLabel 将评价值收敛到有限标签集
func RatingLabel(rating string) string {
	switch rating {
	case "positive", "negative":
		return rating
	default:
		return "other"
	}
}
