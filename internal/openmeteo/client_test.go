package openmeteo

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"agriweather/internal/models"
	"agriweather/pkg/logging"
	"agriweather/pkg/metrics"
)

func berlinJan1() models.QueryParameters {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return models.QueryParameters{
		Latitude:  52.52,
		Longitude: 13.41,
		StartDate: day,
		EndDate:   day,
		Variables: []models.Variable{models.Temperature2m, models.Precipitation},
	}
}

func newTestClient(t *testing.T, baseURL string, cfg Config) (*Client, *metrics.Collector) {
	t.Helper()
	logger := logging.NewStructuredLogger("test", "test", logging.DebugLevel)
	logger.SetOutput(io.Discard)
	m := metrics.NewCollector("test", prometheus.NewRegistry())
	cfg.BaseURL = baseURL
	return NewClient(cfg, logger, m), m
}

func TestBuildQuery_Keys(t *testing.T) {
	q := BuildQuery(berlinJan1())

	var keys []string
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	want := []string{"end_date", "hourly", "latitude", "longitude", "precipitation_unit", "start_date", "temperature_unit"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Errorf("keys = %v, want %v", keys, want)
	}
}

func TestBuildQuery_BerlinScenario(t *testing.T) {
	q := BuildQuery(berlinJan1())

	checks := map[string]string{
		"latitude":           "52.52",
		"longitude":          "13.41",
		"hourly":             "temperature_2m,precipitation",
		"start_date":         "2024-01-01",
		"end_date":           "2024-01-01",
		"temperature_unit":   "celsius",
		"precipitation_unit": "mm",
	}
	for key, want := range checks {
		if got := q.Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
}

func TestBuildQuery_PreservesSuppliedOrder(t *testing.T) {
	params := berlinJan1()
	params.Variables = []models.Variable{models.SoilMoisture0To1cm, models.Temperature2m, models.RelativeHumidity2m}

	if got := BuildQuery(params).Get("hourly"); got != "soil_moisture_0_to_1cm,temperature_2m,relative_humidity_2m" {
		t.Errorf("hourly = %q", got)
	}
}

func TestFetchForecast_Success(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"latitude": 52.52, "longitude": 13.419998, "elevation": 38.0, "timezone": "GMT",
			"hourly_units": {"time": "iso8601", "temperature_2m": "°C", "precipitation": "mm"},
			"hourly": {
				"time": ["2024-01-01T00:00", "2024-01-01T01:00"],
				"temperature_2m": [1.5, 2.0],
				"precipitation": [0.0, null]
			}
		}`)
	}))
	defer srv.Close()

	client, m := newTestClient(t, srv.URL, Config{})
	resp, err := client.FetchForecast(context.Background(), berlinJan1())
	if err != nil {
		t.Fatalf("FetchForecast() error = %v", err)
	}

	if !strings.Contains(gotQuery, "hourly=temperature_2m%2Cprecipitation") {
		t.Errorf("query = %q, want hourly list", gotQuery)
	}
	if resp.Timezone != "GMT" || resp.Elevation != 38.0 {
		t.Errorf("resp location = %v / %v", resp.Timezone, resp.Elevation)
	}
	if _, ok := resp.Hourly["temperature_2m"]; !ok {
		t.Error("hourly.temperature_2m missing")
	}
	if got := testutil.ToFloat64(m.ForecastFetchesTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok fetches = %v, want 1", got)
	}
}

func TestFetchForecast_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		check   func(*testing.T, error)
		outcome string
	}{
		{
			name:   "api error body is surfaced verbatim",
			status: http.StatusBadRequest,
			body:   `{"error": true, "reason": "Latitude must be in range of -90 to 90°. Given: 91.0."}`,
			check: func(t *testing.T, err error) {
				var apiErr *models.APIError
				if !errors.As(err, &apiErr) {
					t.Fatalf("error type = %T, want *models.APIError", err)
				}
				if apiErr.Reason != "Latitude must be in range of -90 to 90°. Given: 91.0." {
					t.Errorf("Reason = %q", apiErr.Reason)
				}
				if apiErr.StatusCode != http.StatusBadRequest {
					t.Errorf("StatusCode = %d", apiErr.StatusCode)
				}
			},
			outcome: "api_error",
		},
		{
			name:   "error flag with 200 status",
			status: http.StatusOK,
			body:   `{"error": true, "reason": "Parameter 'start_date' is out of allowed range"}`,
			check: func(t *testing.T, err error) {
				var apiErr *models.APIError
				if !errors.As(err, &apiErr) || apiErr.Reason != "Parameter 'start_date' is out of allowed range" {
					t.Fatalf("error = %v, want APIError with upstream reason", err)
				}
			},
			outcome: "api_error",
		},
		{
			name:   "non-JSON 5xx",
			status: http.StatusBadGateway,
			body:   `<html>bad gateway</html>`,
			check: func(t *testing.T, err error) {
				var apiErr *models.APIError
				if !errors.As(err, &apiErr) || apiErr.Reason != "unexpected status 502" {
					t.Fatalf("error = %v, want APIError unexpected status 502", err)
				}
			},
			outcome: "api_error",
		},
		{
			name:   "non-JSON 200",
			status: http.StatusOK,
			body:   `not json`,
			check: func(t *testing.T, err error) {
				var malformed *models.MalformedResponseError
				if !errors.As(err, &malformed) {
					t.Fatalf("error type = %T, want *models.MalformedResponseError", err)
				}
			},
			outcome: "malformed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			client, m := newTestClient(t, srv.URL, Config{})
			_, err := client.FetchForecast(context.Background(), berlinJan1())
			if err == nil {
				t.Fatal("FetchForecast() error = nil, want error")
			}
			tt.check(t, err)

			if got := testutil.ToFloat64(m.ForecastFetchesTotal.WithLabelValues(tt.outcome)); got != 1 {
				t.Errorf("%s fetches = %v, want 1", tt.outcome, got)
			}
		})
	}
}

func TestFetchForecast_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	client, _ := newTestClient(t, baseURL, Config{})
	_, err := client.FetchForecast(context.Background(), berlinJan1())

	var netErr *models.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("error = %v (%T), want *models.NetworkError", err, err)
	}
}

func TestFetchForecast_BaseURLWithQuery(t *testing.T) {
	var gotPath string
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		_, _ = io.WriteString(w, `{"hourly": {"time": []}}`)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL+"/v1/forecast?apikey=secret&hourly=stale", Config{})
	if _, err := client.FetchForecast(context.Background(), berlinJan1()); err != nil {
		t.Fatalf("FetchForecast() error = %v", err)
	}

	if gotPath != "/v1/forecast" {
		t.Errorf("path = %q, want /v1/forecast", gotPath)
	}
	checks := map[string]string{
		"apikey":     "secret",
		"hourly":     "temperature_2m,precipitation",
		"latitude":   "52.52",
		"start_date": "2024-01-01",
	}
	for k, want := range checks {
		if got := gotQuery[k]; len(got) != 1 || got[0] != want {
			t.Errorf("%s = %v, want [%s]", k, got, want)
		}
	}
}

func TestRequestURL_InvalidBase(t *testing.T) {
	if _, err := requestURL("http://%zz", berlinJan1()); err == nil {
		t.Error("requestURL() error = nil, want parse failure")
	}
}

func TestFetchForecast_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client, _ := newTestClient(t, srv.URL, Config{RequestTimeout: 50 * time.Millisecond})
	_, err := client.FetchForecast(context.Background(), berlinJan1())

	var netErr *models.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("error = %v, want *models.NetworkError", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded in chain", err)
	}
}

func TestFetchForecast_CancelledBeforeRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"hourly": {"time": []}}`)
	}))
	defer srv.Close()

	client, _ := newTestClient(t, srv.URL, Config{RateLimitRPS: 0.001, RateLimitBurst: 1})

	// first call consumes the only token
	if _, err := client.FetchForecast(context.Background(), berlinJan1()); err != nil {
		t.Fatalf("first FetchForecast() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.FetchForecast(ctx, berlinJan1())

	var netErr *models.NetworkError
	if !errors.As(err, &netErr) || netErr.Op != "rate limit wait" {
		t.Fatalf("error = %v, want rate limit NetworkError", err)
	}
}
