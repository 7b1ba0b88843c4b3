package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var classificationsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sift_classifications_processed_total",
	Help: "Number of classification pipeline runs, by resulting decision.",
}, []string{"decision"})

var classificationsSkipped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "sift_classifications_skipped_total",
	Help: "Number of posts that did not qualify for classification.",
})

var verdictsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sift_moderator_verdicts_total",
	Help: "Number of moderator verdicts applied, by resulting state.",
}, []string{"state"})

var reportsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "sift_action_reports_enqueued_total",
	Help: "Number of action-report jobs enqueued, by reason.",
}, []string{"reason"})
