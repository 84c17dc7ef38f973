package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"agriweather/internal/models"
	"agriweather/pkg/logging"
	"agriweather/pkg/metrics"
)

// DefaultBaseURL is the public Open-Meteo forecast endpoint
const DefaultBaseURL = "https://api.open-meteo.com/v1/forecast"

// maxBodyBytes caps how much of a response body is read; a full year of four
// hourly variables is well under 1 MiB.
const maxBodyBytes = 16 << 20

// Fixed unit selections sent with every request
const (
	TemperatureUnit   = "celsius"
	PrecipitationUnit = "mm"
)

// BuildQuery maps QueryParameters onto the forecast API's query-string keys.
// hourly is the selected variables joined by commas in the order supplied.
func BuildQuery(params models.QueryParameters) url.Values {
	names := make([]string, len(params.Variables))
	for i, v := range params.Variables {
		names[i] = string(v)
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(params.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(params.Longitude, 'f', -1, 64))
	q.Set("hourly", strings.Join(names, ","))
	q.Set("start_date", params.StartDate.Format(models.DateLayout))
	q.Set("end_date", params.EndDate.Format(models.DateLayout))
	q.Set("temperature_unit", TemperatureUnit)
	q.Set("precipitation_unit", PrecipitationUnit)
	return q
}

// Config holds forecast client settings
type Config struct {
	BaseURL        string
	RequestTimeout time.Duration // 0 leaves the deadline to the caller's context
	RateLimitRPS   float64       // 0 disables outbound throttling
	RateLimitBurst int
	HTTPClient     *http.Client
}

// Client issues forecast requests against the Open-Meteo API
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
}

// NewClient creates a new forecast client
func NewClient(cfg Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	return &Client{
		baseURL:    baseURL,
		timeout:    cfg.RequestTimeout,
		httpClient: httpClient,
		limiter:    limiter,
		logger:     logger,
		metrics:    metricsCollector,
	}
}

// FetchForecast performs one GET for params and returns the decoded body.
// Errors are *models.NetworkError, *models.APIError or *models.MalformedResponseError.
// There is no retry.
func (c *Client) FetchForecast(ctx context.Context, params models.QueryParameters) (*models.ForecastResponse, error) {
	timer := c.metrics.NewTimer(c.metrics.ForecastFetchDuration)
	defer timer.ObserveDuration()

	resp, err := c.fetch(ctx, params)
	c.metrics.RecordForecastFetch(outcome(err))
	if err != nil {
		c.logger.Warn(ctx, "[FORECAST_FETCH_FAILED] Forecast request failed", logging.Fields{
			"latitude":  params.Latitude,
			"longitude": params.Longitude,
			"outcome":   outcome(err),
			"error":     err.Error(),
		})
		return nil, err
	}
	return resp, nil
}

func (c *Client) fetch(ctx context.Context, params models.QueryParameters) (*models.ForecastResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &models.NetworkError{Op: "rate limit wait", Err: err}
		}
	}

	u, err := requestURL(c.baseURL, params)
	if err != nil {
		return nil, &models.NetworkError{Op: "build request", Err: err}
	}

	c.logger.Debug(ctx, "[FORECAST_FETCH] Requesting forecast", logging.Fields{
		"url": u,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &models.NetworkError{Op: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &models.NetworkError{Op: "GET forecast", Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, &models.NetworkError{Op: "read forecast body", Err: err}
	}

	ok := httpResp.StatusCode >= 200 && httpResp.StatusCode < 300

	var decoded models.ForecastResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		if !ok {
			return nil, &models.APIError{
				StatusCode: httpResp.StatusCode,
				Reason:     fmt.Sprintf("unexpected status %d", httpResp.StatusCode),
			}
		}
		return nil, &models.MalformedResponseError{Detail: "decode body", Err: err}
	}

	if decoded.Error {
		reason := decoded.Reason
		if reason == "" {
			reason = fmt.Sprintf("unexpected status %d", httpResp.StatusCode)
		}
		return nil, &models.APIError{StatusCode: httpResp.StatusCode, Reason: reason}
	}

	if !ok {
		return nil, &models.APIError{
			StatusCode: httpResp.StatusCode,
			Reason:     fmt.Sprintf("unexpected status %d", httpResp.StatusCode),
		}
	}

	return &decoded, nil
}

// requestURL merges the forecast query into baseURL, keeping any query it already carries
func requestURL(baseURL string, params models.QueryParameters) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}

	q := u.Query()
	for k, v := range BuildQuery(params) {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}

	var netErr *models.NetworkError
	var apiErr *models.APIError
	var malformed *models.MalformedResponseError
	switch {
	case errors.As(err, &netErr):
		return "network_error"
	case errors.As(err, &apiErr):
		return "api_error"
	case errors.As(err, &malformed):
		return "malformed"
	default:
		return "unknown"
	}
}
