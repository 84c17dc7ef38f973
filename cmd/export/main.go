package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"agriweather/internal/config"
	"agriweather/internal/models"
	"agriweather/internal/openmeteo"
	"agriweather/internal/services"
	"agriweather/pkg/logging"
	"agriweather/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Parse command-line flags
	latitude := flag.String("latitude", "", "Latitude in decimal degrees (-90 to 90)")
	longitude := flag.String("longitude", "", "Longitude in decimal degrees (-180 to 180)")
	startDate := flag.String("start", "", "First day, inclusive (YYYY-MM-DD, default today)")
	endDate := flag.String("end", "", "Last day, inclusive (YYYY-MM-DD, default today)")
	variables := flag.String("variables", "", "Comma-separated hourly variables (default temperature_2m,precipitation)")
	outDir := flag.String("out", ".", "Directory the export files are written to")
	formatList := flag.String("formats", "json,csv,xlsx", "Comma-separated export formats")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("agriweather-export", version, logging.ParseLevel(cfg.Logging.Level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	params, err := models.ParseQueryParameters(models.QueryInput{
		Latitude:  *latitude,
		Longitude: *longitude,
		StartDate: *startDate,
		EndDate:   *endDate,
		Variables: []string{*variables},
	}, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid input: %v\n", err)
		os.Exit(2)
	}

	formats, err := parseFormats(*formatList)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid input: %v\n", err)
		os.Exit(2)
	}

	logger.Info(ctx, "[EXPORT_START] Starting weather export", logging.Fields{
		"version": version,
		"query":   params,
		"formats": formats,
		"out_dir": *outDir,
	})

	// the export binary is short-lived; its metrics are never scraped
	metricsCollector := metrics.NewCollector("agriweather_export", prometheus.NewRegistry())

	forecastClient := openmeteo.NewClient(openmeteo.Config{
		BaseURL:        cfg.Forecast.BaseURL,
		RequestTimeout: cfg.Forecast.RequestTimeout,
		RateLimitRPS:   cfg.Forecast.RateLimitRPS,
		RateLimitBurst: cfg.Forecast.RateLimitBurst,
	}, logger, metricsCollector)

	exportService := services.NewExportService(logger, metricsCollector)
	weatherService := services.NewWeatherService(forecastClient, exportService, logger, metricsCollector)

	startTime := time.Now()
	artifacts, err := weatherService.ExportAll(ctx, params, formats)
	if err != nil {
		logger.Error(ctx, "[EXPORT_ERROR] Export failed", logging.Fields{}, err)
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		os.Exit(exitCode(err))
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		logger.Fatal(ctx, "[EXPORT_ERROR] Failed to create output directory", logging.Fields{
			"out_dir": *outDir,
		}, err)
	}

	written := make([]string, 0, len(artifacts))
	var totalBytes int
	for _, a := range artifacts {
		path := filepath.Join(*outDir, a.FileName)
		if err := os.WriteFile(path, a.Data, 0o644); err != nil {
			logger.Fatal(ctx, "[EXPORT_ERROR] Failed to write export file", logging.Fields{
				"path": path,
			}, err)
		}
		written = append(written, path)
		totalBytes += len(a.Data)
	}
	duration := time.Since(startTime)

	// Print results
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("EXPORT COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Location:           %.4f, %.4f\n", params.Latitude, params.Longitude)
	fmt.Printf("Date Range:         %s to %s\n", params.StartDate.Format(models.DateLayout), params.EndDate.Format(models.DateLayout))
	fmt.Printf("Variables:          %s\n", joinVariables(params.Variables))
	fmt.Printf("Total Bytes:        %d\n", totalBytes)
	fmt.Printf("Duration:           %v\n", duration)
	fmt.Println("\nFiles:")
	for _, path := range written {
		fmt.Printf("  - %s\n", path)
	}

	logger.Info(ctx, "[EXPORT_COMPLETE] Export completed successfully", logging.Fields{
		"files":            len(written),
		"total_bytes":      totalBytes,
		"duration_seconds": duration.Seconds(),
	})
}

func parseFormats(s string) ([]services.Format, error) {
	var formats []services.Format
	seen := make(map[services.Format]bool)
	for _, name := range strings.Split(s, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		f, err := services.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		if !seen[f] {
			seen[f] = true
			formats = append(formats, f)
		}
	}
	if len(formats) == 0 {
		return nil, fmt.Errorf("at least one export format is required")
	}
	return formats, nil
}

func joinVariables(vars []models.Variable) string {
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = string(v)
	}
	return strings.Join(names, ",")
}

// exitCode separates rejected input (2) from upstream failures (1)
func exitCode(err error) int {
	var validationErr *models.ValidationError
	var apiErr *models.APIError
	if errors.As(err, &validationErr) || errors.As(err, &apiErr) {
		return 2
	}
	return 1
}
