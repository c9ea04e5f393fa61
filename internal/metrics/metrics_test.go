package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(unitsTotal.WithLabelValues("skipped"))
	RecordUnit("skipped")
	RecordUnit("skipped")
	assert.Equal(t, before+2, testutil.ToFloat64(unitsTotal.WithLabelValues("skipped")))

	iterations := testutil.ToFloat64(resamplingIterations)
	RecordIteration()
	assert.Equal(t, iterations+1, testutil.ToFloat64(resamplingIterations))

	hits := testutil.ToFloat64(cacheLookups.WithLabelValues("hit"))
	RecordCacheLookup("hit")
	assert.Equal(t, hits+1, testutil.ToFloat64(cacheLookups.WithLabelValues("hit")))
}

func TestObserveFit(t *testing.T) {
	ObserveFit("cox", 3*time.Millisecond)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(unitFitSeconds), 1)
}
