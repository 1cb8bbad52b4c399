package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAreLabelledByDataset(t *testing.T) {
	before := testutil.ToFloat64(RowsIterated.WithLabelValues("metrics_test_a"))
	RowsIterated.WithLabelValues("metrics_test_a").Add(3)
	RowsIterated.WithLabelValues("metrics_test_b").Add(5)

	assert.Equal(t, before+3, testutil.ToFloat64(RowsIterated.WithLabelValues("metrics_test_a")))
}

func TestThroughputTracker(t *testing.T) {
	now := time.Unix(0, 0)
	tracker := NewThroughputTracker("metrics_test", func() time.Time { return now })

	tracker.Increment(50)
	tracker.Increment(50)
	now = now.Add(4 * time.Second)

	assert.Equal(t, 25.0, tracker.GetAndReset())
	assert.Equal(t, 25.0, testutil.ToFloat64(Throughput.WithLabelValues("metrics_test")))
	assert.Equal(t, 0.0, tracker.GetAndReset(), "no time has passed since the reset")
}

func TestProcessMemory(t *testing.T) {
	m, err := ProcessMemory()
	require.NoError(t, err)
	assert.Greater(t, m.RSS, uint64(0))
}

func TestTimer(t *testing.T) {
	timer := NewTimer("open")
	assert.Equal(t, "open", timer.Name())
	assert.GreaterOrEqual(t, timer.Stop(), time.Duration(0))
}
