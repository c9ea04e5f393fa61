package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// unitsTotal counts analysed units.
	// Labels: status (tested, skipped, fit_failed)
	unitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omicpath",
		Name:      "units_total",
		Help:      "Analysis units processed, by outcome status",
	}, []string{"status"})

	// unitFitSeconds measures the reduction plus model fit of one unit.
	// Labels: model (cox, logistic)
	unitFitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "omicpath",
		Name:      "unit_fit_seconds",
		Help:      "Time to reduce and fit one analysis unit",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"model"})

	// resamplingIterations counts completed resampling iterations.
	resamplingIterations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "omicpath",
		Subsystem: "resampling",
		Name:      "iterations_total",
		Help:      "Completed resampling iterations",
	})

	// cacheLookups counts checkpoint cache lookups.
	// Labels: result (hit, miss, error)
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omicpath",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Checkpoint cache lookups by result",
	}, []string{"result"})
)

// RecordUnit counts one unit outcome
func RecordUnit(status string) {
	unitsTotal.WithLabelValues(status).Inc()
}

// ObserveFit records how long a unit took
func ObserveFit(model string, d time.Duration) {
	unitFitSeconds.WithLabelValues(model).Observe(d.Seconds())
}

// RecordIteration counts one finished resampling iteration
func RecordIteration() {
	resamplingIterations.Inc()
}

// RecordCacheLookup counts a cache hit, miss or error
func RecordCacheLookup(result string) {
	cacheLookups.WithLabelValues(result).Inc()
}
