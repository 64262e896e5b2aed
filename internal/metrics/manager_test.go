package metrics_test

import (
	"strings"
	"testing"

	"github.com/myrjola/stride/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewManager(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewManager("stride", "web", reg)

	m.CounterCacheLookups.WithLabelValues("hit").Inc()
	m.CounterCacheLookups.WithLabelValues("hit").Inc()
	m.CounterCacheLookups.WithLabelValues("miss").Inc()

	if got := testutil.ToFloat64(m.CounterCacheLookups.WithLabelValues("hit")); got != 2 {
		t.Errorf("Got %v hits, want 2", got)
	}

	expected := `
# HELP stride_web_workout_cache_lookups_total Generated workout cache lookups by result.
# TYPE stride_web_workout_cache_lookups_total counter
stride_web_workout_cache_lookups_total{result="hit"} 2
stride_web_workout_cache_lookups_total{result="miss"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"stride_web_workout_cache_lookups_total"); err != nil {
		t.Error(err)
	}
}

func TestNewManager_duplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.NewManager("stride", "web", reg)
	defer func() {
		if recover() == nil {
			t.Error("Registering the same instruments twice did not panic")
		}
	}()
	metrics.NewManager("stride", "web", reg)
}
