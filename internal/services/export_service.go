package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"agriweather/internal/models"
	"agriweather/pkg/logging"
	"agriweather/pkg/metrics"
)

// Format is a download encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Formats lists the supported encodings in button order
var Formats = []Format{FormatJSON, FormatCSV, FormatXLSX}

// exportBaseName is the file name stem of every download
const exportBaseName = "weather_data"

// csvTimeLayout matches the datetime rendering of the dashboard's CSV download
const csvTimeLayout = "2006-01-02 15:04:05"

// sheetName is the single worksheet of a spreadsheet export
const sheetName = "Sheet1"

// xlsxTimeFormat renders the time column down to the second
var xlsxTimeFormat = "yyyy-mm-dd hh:mm:ss"

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FormatJSON, FormatCSV, FormatXLSX:
		return f, nil
	}
	return "", &models.ValidationError{
		Field:   "format",
		Value:   s,
		Message: "unsupported export format " + strconv.Quote(s) + ", expected json, csv or xlsx",
	}
}

// FileName returns the download name for f
func (f Format) FileName() string {
	return exportBaseName + "." + string(f)
}

// MimeType returns the content type served for f
func (f Format) MimeType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv"
	case FormatXLSX:
		return "application/vnd.ms-excel"
	default:
		return "application/octet-stream"
	}
}

// ExportService encodes WeatherTables into downloadable artifacts
type ExportService struct {
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewExportService creates a new export service
func NewExportService(logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ExportService {
	return &ExportService{
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Encode produces the artifact for one format
func (s *ExportService) Encode(ctx context.Context, table *models.WeatherTable, format Format) (*models.Artifact, error) {
	startTime := time.Now()

	var (
		data []byte
		err  error
	)
	switch format {
	case FormatJSON:
		data, err = s.EncodeJSON(table)
	case FormatCSV:
		data, err = s.EncodeCSV(table)
	case FormatXLSX:
		data, err = s.EncodeXLSX(table)
	default:
		_, err = ParseFormat(string(format))
	}
	if err != nil {
		s.logger.Error(ctx, "[EXPORT_ERROR] Failed to encode export", logging.Fields{
			"format": string(format),
		}, err)
		return nil, err
	}

	s.metrics.RecordExport(string(format), len(data))
	s.metrics.ObserveProcessing("export_"+string(format), time.Since(startTime))

	s.logger.Debug(ctx, "[EXPORT_ENCODED] Export encoded", logging.Fields{
		"format": string(format),
		"rows":   table.RowCount(),
		"bytes":  len(data),
	})

	return &models.Artifact{
		FileName: format.FileName(),
		MimeType: format.MimeType(),
		Data:     data,
	}, nil
}

// Records returns the table as row-oriented records: time in epoch milliseconds,
// missing samples as nil.
func Records(table *models.WeatherTable) []models.Record {
	header := table.Header()
	records := make([]models.Record, table.RowCount())
	for i, ts := range table.Times {
		values := make([]interface{}, 0, len(header))
		values = append(values, ts.UnixMilli())
		for _, c := range table.Columns {
			if v := table.Values[c][i]; v != nil {
				values = append(values, *v)
			} else {
				values = append(values, nil)
			}
		}
		records[i] = models.Record{Keys: header, Values: values}
	}
	return records
}

// EncodeJSON writes a JSON array with one object per row
func (s *ExportService) EncodeJSON(table *models.WeatherTable) ([]byte, error) {
	data, err := json.Marshal(Records(table))
	if err != nil {
		return nil, fmt.Errorf("failed to encode json export: %w", err)
	}
	return data, nil
}

// EncodeCSV writes a header line followed by one line per row, without an index column
func (s *ExportService) EncodeCSV(table *models.WeatherTable) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(table.Header()); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	line := make([]string, len(table.Columns)+1)
	for i, ts := range table.Times {
		line[0] = ts.Format(csvTimeLayout)
		for j, c := range table.Columns {
			line[j+1] = formatSample(table.Values[c][i])
		}
		if err := w.Write(line); err != nil {
			return nil, fmt.Errorf("failed to write csv row %d: %w", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv export: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeXLSX builds a single-sheet workbook in memory
func (s *ExportService) EncodeXLSX(table *models.WeatherTable) (data []byte, err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close workbook: %w", cerr)
		}
	}()

	header := table.Header()
	headerRow := make([]interface{}, len(header))
	for i, h := range header {
		headerRow[i] = h
	}
	if err := f.SetSheetRow(sheetName, "A1", &headerRow); err != nil {
		return nil, fmt.Errorf("failed to write xlsx header: %w", err)
	}

	for i, ts := range table.Times {
		row := make([]interface{}, 0, len(header))
		// excel has no zones; keep the wall clock the CSV shows
		row = append(row, time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), ts.Minute(), ts.Second(), 0, time.UTC))
		for _, c := range table.Columns {
			if v := table.Values[c][i]; v != nil {
				row = append(row, *v)
			} else {
				row = append(row, nil)
			}
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("failed to address xlsx row %d: %w", i, err)
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write xlsx row %d: %w", i, err)
		}
	}

	if n := table.RowCount(); n > 0 {
		timeStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &xlsxTimeFormat})
		if err != nil {
			return nil, fmt.Errorf("failed to create xlsx time style: %w", err)
		}
		if err := f.SetCellStyle(sheetName, "A2", "A"+strconv.Itoa(n+1), timeStyle); err != nil {
			return nil, fmt.Errorf("failed to style xlsx time column: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write xlsx workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func formatSample(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
