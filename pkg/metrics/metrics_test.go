package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector("test", prometheus.NewRegistry())

	c.RecordForecastFetch("ok")
	c.RecordForecastFetch("ok")
	c.RecordForecastFetch("api_error")
	c.RecordAPIRequest("/api/weather", "GET", "200")
	c.RecordAPIError("network_error", "/api/weather")
	c.RecordExport("csv", 2048)

	if got := testutil.ToFloat64(c.ForecastFetchesTotal.WithLabelValues("ok")); got != 2 {
		t.Errorf("ok fetches = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.ForecastFetchesTotal.WithLabelValues("api_error")); got != 1 {
		t.Errorf("api_error fetches = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.APIRequestsTotal.WithLabelValues("/api/weather", "GET", "200")); got != 1 {
		t.Errorf("api requests = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.APIErrorsTotal.WithLabelValues("network_error", "/api/weather")); got != 1 {
		t.Errorf("api errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.ExportsTotal.WithLabelValues("csv")); got != 1 {
		t.Errorf("csv exports = %v, want 1", got)
	}
}

func TestCollector_SeparateRegistries(t *testing.T) {
	// Two collectors with the same namespace must not collide on distinct registries.
	NewCollector("dup", prometheus.NewRegistry())
	NewCollector("dup", prometheus.NewRegistry())
}

func TestTimer_ObserveDuration(t *testing.T) {
	c := NewCollector("timer", prometheus.NewRegistry())
	timer := c.NewTimer(c.ForecastFetchDuration)
	time.Sleep(time.Millisecond)
	if d := timer.ObserveDuration(); d <= 0 {
		t.Errorf("duration = %v, want > 0", d)
	}
	if n := testutil.CollectAndCount(c.ForecastFetchDuration); n != 1 {
		t.Errorf("collected %d series, want 1", n)
	}
}
