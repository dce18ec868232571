package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveTurn("next_question", "ok")
	c.ObserveTurn("next_question", "ok")
	c.ObserveGeneration(GenerationDuplicate, 10*time.Millisecond)
	c.ObserveGeneration(GenerationAccepted, 20*time.Millisecond)
	c.ObserveFallback("leadership")
	c.ObserveDiscarded()
	c.ObserveSession("completed")
	c.ObserveExport("ok")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.turns.WithLabelValues("next_question", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.generationAttempts.WithLabelValues(GenerationDuplicate)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.fallbacks.WithLabelValues("leadership")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.discarded))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessions.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.exports.WithLabelValues("ok")))

	n, err := testutil.GatherAndCount(reg, "survey_generation_latency_ms")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWatchExportQueue(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	queued, running := 3, 1
	c.WatchExportQueue(func() (int, int) { return queued, running })

	n, err := testutil.GatherAndCount(reg, "survey_export_queue_length", "survey_export_workers_running")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	queued = 0
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		switch mf.GetName() {
		case "survey_export_queue_length":
			assert.Equal(t, 0.0, mf.GetMetric()[0].GetGauge().GetValue())
		case "survey_export_workers_running":
			assert.Equal(t, 1.0, mf.GetMetric()[0].GetGauge().GetValue())
		}
	}

	NewCollector(nil).WatchExportQueue(func() (int, int) { return 0, 0 })
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.ObserveTurn("x", "y")
	c.ObserveGeneration(GenerationError, time.Second)
	c.ObserveFallback("t")
	c.ObserveDiscarded()
	c.ObserveSession("s")
	c.ObserveExport("e")
}
