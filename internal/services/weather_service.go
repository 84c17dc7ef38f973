package services

import (
	"context"
	"time"

	"agriweather/internal/models"
	"agriweather/pkg/logging"
	"agriweather/pkg/metrics"
)

// ForecastSource fetches raw forecast data; *openmeteo.Client implements it
type ForecastSource interface {
	FetchForecast(ctx context.Context, params models.QueryParameters) (*models.ForecastResponse, error)
}

// WeatherService runs the fetch, assemble, summarize pipeline. It holds no
// per-request state; every call starts from scratch.
type WeatherService struct {
	source  ForecastSource
	export  *ExportService
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
	now     func() time.Time
}

// NewWeatherService creates a new weather service
func NewWeatherService(source ForecastSource, export *ExportService, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *WeatherService {
	return &WeatherService{
		source:  source,
		export:  export,
		logger:  logger,
		metrics: metricsCollector,
		now:     time.Now,
	}
}

// FetchTable fetches the forecast for params and assembles it into a table
func (s *WeatherService) FetchTable(ctx context.Context, params models.QueryParameters) (*models.WeatherTable, *models.ForecastResponse, error) {
	if err := params.Validate(); err != nil {
		return nil, nil, err
	}

	resp, err := s.source.FetchForecast(ctx, params)
	if err != nil {
		return nil, nil, err
	}
	// error bodies never reach the assembler
	if resp.Error {
		return nil, nil, &models.APIError{Reason: resp.Reason}
	}

	startTime := time.Now()
	table, err := AssembleTable(resp, params.Variables)
	if err != nil {
		s.logger.Error(ctx, "[TABLE_ASSEMBLY_ERROR] Forecast response could not be assembled", logging.Fields{
			"latitude":  params.Latitude,
			"longitude": params.Longitude,
		}, err)
		return nil, nil, err
	}
	s.metrics.ObserveProcessing("assemble_table", time.Since(startTime))
	s.metrics.TableRows.Observe(float64(table.RowCount()))

	return table, resp, nil
}

// FetchReport runs the whole pipeline for params. Either the full report is
// returned or an error; there is no partial result.
func (s *WeatherService) FetchReport(ctx context.Context, params models.QueryParameters) (*models.WeatherReport, error) {
	table, resp, err := s.FetchTable(ctx, params)
	if err != nil {
		return nil, err
	}

	report := &models.WeatherReport{
		Query: params,
		Location: models.Location{
			Latitude:  resp.Latitude,
			Longitude: resp.Longitude,
			Elevation: resp.Elevation,
			Timezone:  resp.Timezone,
		},
		Summary:   Summarize(table),
		Charts:    BuildCharts(table),
		Columns:   table.Header(),
		Rows:      Records(table),
		RowCount:  table.RowCount(),
		FetchedAt: s.now().UTC(),
	}

	// the map shows the requested point when the API omits coordinates
	if report.Location.Latitude == 0 && report.Location.Longitude == 0 {
		report.Location.Latitude = params.Latitude
		report.Location.Longitude = params.Longitude
	}

	s.logger.Info(ctx, "[WEATHER_REPORT] Weather report built", logging.Fields{
		"latitude":   params.Latitude,
		"longitude":  params.Longitude,
		"start_date": params.StartDate.Format(models.DateLayout),
		"end_date":   params.EndDate.Format(models.DateLayout),
		"variables":  len(params.Variables),
		"rows":       report.RowCount,
	})

	return report, nil
}

// Export fetches the forecast for params and encodes it in format
func (s *WeatherService) Export(ctx context.Context, params models.QueryParameters, format Format) (*models.Artifact, error) {
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}

	table, _, err := s.FetchTable(ctx, params)
	if err != nil {
		return nil, err
	}
	return s.export.Encode(ctx, table, format)
}

// ExportAll fetches once and encodes every requested format
func (s *WeatherService) ExportAll(ctx context.Context, params models.QueryParameters, formats []Format) ([]*models.Artifact, error) {
	for _, f := range formats {
		if _, err := ParseFormat(string(f)); err != nil {
			return nil, err
		}
	}

	table, _, err := s.FetchTable(ctx, params)
	if err != nil {
		return nil, err
	}

	artifacts := make([]*models.Artifact, 0, len(formats))
	for _, f := range formats {
		a, err := s.export.Encode(ctx, table, f)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}
