package services

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"agriweather/internal/models"
	"agriweather/pkg/logging"
	"agriweather/pkg/metrics"
)

func f64(v float64) *float64 { return &v }

func testDeps(t *testing.T) (*logging.StructuredLogger, *metrics.Collector) {
	t.Helper()
	logger := logging.NewStructuredLogger("test", "test", logging.DebugLevel)
	logger.SetOutput(io.Discard)
	return logger, metrics.NewCollector("test", prometheus.NewRegistry())
}

func hourlyResponse(t *testing.T, timezone string, hourly map[string]interface{}) *models.ForecastResponse {
	t.Helper()
	raw := make(map[string]json.RawMessage, len(hourly))
	for k, v := range hourly {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal %s: %v", k, err)
		}
		raw[k] = data
	}
	return &models.ForecastResponse{
		Latitude:  52.52,
		Longitude: 13.419998,
		Elevation: 38,
		Timezone:  timezone,
		Hourly:    raw,
	}
}

// tableOf builds a table directly, starting at 2024-01-01T00:00Z with hourly steps
func tableOf(columns map[models.Variable][]*float64, order ...models.Variable) *models.WeatherTable {
	n := 0
	for _, v := range columns {
		n = len(v)
		break
	}
	times := make([]time.Time, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range times {
		times[i] = start.Add(time.Duration(i) * time.Hour)
	}
	units := make(map[models.Variable]string, len(order))
	for _, v := range order {
		units[v] = v.Unit()
	}
	return &models.WeatherTable{Times: times, Columns: order, Values: columns, Units: units}
}
