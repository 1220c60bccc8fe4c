package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Invocation outcomes, used as the label on the invocation counter.
const (
	OutcomeSuccess    = "success"
	OutcomeTimeout    = "timeout"
	OutcomeExitError  = "exit_error"
	OutcomeParseError = "parse_error"
	OutcomeSpawnError = "spawn_error"
	OutcomeCanceled   = "canceled"
)

var (
	invocationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mlbridge",
		Name:      "invocations_total",
		Help:      "Analyzer process invocations by outcome.",
	}, []string{"outcome"})

	invocationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mlbridge",
		Name:      "invocation_duration_seconds",
		Help:      "Wall-clock duration of one analyzer invocation.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	retriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mlbridge",
		Name:      "retries_total",
		Help:      "Invocation attempts beyond the first.",
	})

	batchesPerCall = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "mlbridge",
		Name:      "batches_per_call",
		Help:      "Number of batches a single pipeline call was split into.",
		Buckets:   []float64{1, 2, 4, 8, 16, 32, 64},
	})

	recordsProcessedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mlbridge",
		Name:      "records_processed_total",
		Help:      "Transaction records accepted into the pipeline.",
	})
)

// Register attaches all bridge collectors to reg. Collectors already
// present are tolerated so several pipelines can share one registry.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		invocationsTotal,
		invocationDuration,
		retriesTotal,
		batchesPerCall,
		recordsProcessedTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveInvocation records one analyzer process run.
func ObserveInvocation(d time.Duration, outcome string) {
	invocationsTotal.WithLabelValues(outcome).Inc()
	invocationDuration.Observe(d.Seconds())
}

// IncRetry counts one attempt beyond the first.
func IncRetry() {
	retriesTotal.Inc()
}

// ObserveBatchRun records how a pipeline call was partitioned.
func ObserveBatchRun(batches, records int) {
	batchesPerCall.Observe(float64(batches))
	recordsProcessedTotal.Add(float64(records))
}
