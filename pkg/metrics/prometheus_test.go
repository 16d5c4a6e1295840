package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordForecast("multi", "specific", "ok", 30)
	r.RecordForecast("single", "generic", "ok", 1)
	r.RecordCache("forecast", true)
	r.RecordCache("forecast", false)
	r.RecordRegistry(4, 1, true)
	r.RecordLatency("forecast", 10*time.Millisecond)

	assert.Equal(t, 31.0, testutil.ToFloat64(r.predictorSteps))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.forecasts.WithLabelValues("multi", "specific", "ok")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.registryPairs.WithLabelValues("loaded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("forecast", "miss")))

	// a second recorder on its own registry must not collide
	assert.NotPanics(t, func() { New(prometheus.NewRegistry()) })
}
