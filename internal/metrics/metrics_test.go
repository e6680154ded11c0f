package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observe(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveCycle("Admin", true)
	m.ObserveCycle("Admin", false)
	m.ObserveCycle("Guest", true)
	m.ObserveUnknown()
	m.ObserveStorageError("save")
	m.ObserveRetrain(3 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Cycles.WithLabelValues("Admin")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Hits.WithLabelValues("Admin")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Hits.WithLabelValues("Guest")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnknownIncrements))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StorageErrors.WithLabelValues("save")))

	n, err := testutil.GatherAndCount(reg, "launchpredict_retrain_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCycle("Admin", true)
	m.ObserveUnknown()
	m.ObserveStorageError("load")
	m.ObserveRetrain(time.Second)
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
