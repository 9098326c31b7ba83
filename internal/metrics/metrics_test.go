package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordDecodedIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(EventsDecoded.WithLabelValues("prog-metrics-test", "log"))
	RecordDecoded("prog-metrics-test", "log")
	after := testutil.ToFloat64(EventsDecoded.WithLabelValues("prog-metrics-test", "log"))
	assert.Equal(t, before+1, after)
}

func TestRecordPipelineMatchUsesBooleanLabel(t *testing.T) {
	before := testutil.ToFloat64(PipelineMatches.WithLabelValues("pipe-metrics-test", "true"))
	RecordPipelineMatch("pipe-metrics-test", true)
	after := testutil.ToFloat64(PipelineMatches.WithLabelValues("pipe-metrics-test", "true"))
	assert.Equal(t, before+1, after)
}

func TestSetDestinationHostHealthTogglesGauge(t *testing.T) {
	SetDestinationHostHealth("host-metrics-test", true)
	assert.Equal(t, float64(1), testutil.ToFloat64(DestinationHostHealth.WithLabelValues("host-metrics-test")))

	SetDestinationHostHealth("host-metrics-test", false)
	assert.Equal(t, float64(0), testutil.ToFloat64(DestinationHostHealth.WithLabelValues("host-metrics-test")))
}

func TestSetWorkersActiveSetsGaugeValue(t *testing.T) {
	SetWorkersActive(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(WorkersActive))
}

func TestRecordDedupeIncrementsByOutcome(t *testing.T) {
	before := testutil.ToFloat64(DedupeHits.WithLabelValues("duplicate"))
	RecordDedupe("duplicate")
	after := testutil.ToFloat64(DedupeHits.WithLabelValues("duplicate"))
	assert.Equal(t, before+1, after)
}
