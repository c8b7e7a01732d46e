package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OperationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "question_operations_total",
			Help: "Total number of question service operations",
		},
		[]string{"operation"},
	)

	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "question_operation_duration_seconds",
			Help:    "Duration of question service operations",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation"},
	)
)

func Init() {
	prometheus.MustRegister(OperationCounter)
	prometheus.MustRegister(OperationDuration)
}

// ObserveQuestionOperation records one completed service operation.
func ObserveQuestionOperation(operation string, elapsed time.Duration) {
	OperationCounter.WithLabelValues(operation).Inc()
	OperationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// Handler exposes the metrics endpoint for the embedding API layer to mount.
func Handler() http.Handler {
	return promhttp.Handler()
}
