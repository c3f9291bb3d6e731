package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerLLMOnce sync.Once

	llmRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "resumebooster",
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "Distribution of upstream LLM request latency in seconds.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"operation"},
	)

	llmRequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resumebooster",
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Total number of upstream LLM requests by outcome.",
		},
		[]string{"operation", "outcome"},
	)
)

// ObserveLLMRequest records one upstream LLM call.
func ObserveLLMRequest(operation string, duration time.Duration, err error) {
	registerLLMOnce.Do(func() {
		prometheus.MustRegister(llmRequestDuration, llmRequestTotal)
	})

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	llmRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	llmRequestTotal.WithLabelValues(operation, outcome).Inc()
}
