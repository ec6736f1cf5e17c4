package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestTimerDurationGrowsMonotonically(t *testing.T) {
	timer := NewTimer()

	time.Sleep(10 * time.Millisecond)
	first := timer.Duration()
	require.GreaterOrEqual(t, first, 10*time.Millisecond)

	time.Sleep(10 * time.Millisecond)
	require.Greater(t, timer.Duration(), first)
}

func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "test_duration_seconds",
		Buckets: prometheus.DefBuckets,
	})

	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	timer.ObserveDuration(histogram)

	require.NotZero(t, timer.Duration())
}

func TestTimerObserveDurationVec(t *testing.T) {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "test_duration_vec_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	timer.ObserveDurationVec(vec, "drain")

	require.NotZero(t, timer.Duration())
}

func TestTimersAreIndependent(t *testing.T) {
	older := NewTimer()
	time.Sleep(10 * time.Millisecond)
	newer := NewTimer()
	time.Sleep(10 * time.Millisecond)

	require.Greater(t, older.Duration(), newer.Duration())
}
