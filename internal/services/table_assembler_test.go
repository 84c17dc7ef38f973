package services

import (
	"errors"
	"testing"
	"time"

	"agriweather/internal/models"
)

func TestAssembleTable(t *testing.T) {
	tests := []struct {
		name        string
		resp        func(*testing.T) *models.ForecastResponse
		variables   []models.Variable
		wantErr     bool
		checkValues func(*testing.T, *models.WeatherTable)
	}{
		{
			name: "two selected columns with a null sample",
			resp: func(t *testing.T) *models.ForecastResponse {
				return hourlyResponse(t, "UTC", map[string]interface{}{
					"time":           []string{"2024-01-01T00:00", "2024-01-01T01:00", "2024-01-01T02:00"},
					"temperature_2m": []interface{}{1.5, nil, 3.25},
					"precipitation":  []float64{0, 0.2, 0},
				})
			},
			variables: []models.Variable{models.Temperature2m, models.Precipitation},
			checkValues: func(t *testing.T, table *models.WeatherTable) {
				if table.RowCount() != 3 {
					t.Fatalf("RowCount() = %d, want 3", table.RowCount())
				}
				want := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)
				if !table.Times[1].Equal(want) {
					t.Errorf("Times[1] = %v, want %v", table.Times[1], want)
				}
				if len(table.Columns) != 2 || table.Columns[0] != models.Temperature2m {
					t.Errorf("Columns = %v", table.Columns)
				}
				temps := table.Column(models.Temperature2m)
				if temps[1] != nil {
					t.Errorf("temperature[1] = %v, want nil", *temps[1])
				}
				if temps[2] == nil || *temps[2] != 3.25 {
					t.Errorf("temperature[2] = %v, want 3.25", temps[2])
				}
				if table.Units[models.Precipitation] != "mm" {
					t.Errorf("unit = %q, want mm", table.Units[models.Precipitation])
				}
			},
		},
		{
			name: "unselected hourly keys are ignored",
			resp: func(t *testing.T) *models.ForecastResponse {
				return hourlyResponse(t, "", map[string]interface{}{
					"time":                 []string{"2024-01-01T00:00"},
					"temperature_2m":       []float64{4},
					"relative_humidity_2m": []float64{80},
				})
			},
			variables: []models.Variable{models.Temperature2m},
			checkValues: func(t *testing.T, table *models.WeatherTable) {
				if table.HasColumn(models.RelativeHumidity2m) {
					t.Error("unselected column assembled")
				}
				if len(table.Header()) != 2 {
					t.Errorf("Header() = %v", table.Header())
				}
			},
		},
		{
			name: "empty range yields an empty table",
			resp: func(t *testing.T) *models.ForecastResponse {
				return hourlyResponse(t, "UTC", map[string]interface{}{
					"time":          []string{},
					"precipitation": []float64{},
				})
			},
			variables: []models.Variable{models.Precipitation},
			checkValues: func(t *testing.T, table *models.WeatherTable) {
				if table.RowCount() != 0 {
					t.Errorf("RowCount() = %d, want 0", table.RowCount())
				}
			},
		},
		{
			name: "rfc3339 timestamps are accepted",
			resp: func(t *testing.T) *models.ForecastResponse {
				return hourlyResponse(t, "UTC", map[string]interface{}{
					"time":           []string{"2024-01-01T00:00:00Z"},
					"temperature_2m": []float64{1},
				})
			},
			variables: []models.Variable{models.Temperature2m},
			checkValues: func(t *testing.T, table *models.WeatherTable) {
				if table.Times[0].Year() != 2024 {
					t.Errorf("Times[0] = %v", table.Times[0])
				}
			},
		},
		{
			name: "hourly absent",
			resp: func(t *testing.T) *models.ForecastResponse {
				return &models.ForecastResponse{Latitude: 1}
			},
			variables: []models.Variable{models.Temperature2m},
			wantErr:   true,
		},
		{
			name: "time absent",
			resp: func(t *testing.T) *models.ForecastResponse {
				return hourlyResponse(t, "UTC", map[string]interface{}{
					"temperature_2m": []float64{1},
				})
			},
			variables: []models.Variable{models.Temperature2m},
			wantErr:   true,
		},
		{
			name: "selected column absent",
			resp: func(t *testing.T) *models.ForecastResponse {
				return hourlyResponse(t, "UTC", map[string]interface{}{
					"time":           []string{"2024-01-01T00:00"},
					"temperature_2m": []float64{1},
				})
			},
			variables: []models.Variable{models.Temperature2m, models.Precipitation},
			wantErr:   true,
		},
		{
			name: "inconsistent column length",
			resp: func(t *testing.T) *models.ForecastResponse {
				return hourlyResponse(t, "UTC", map[string]interface{}{
					"time":           []string{"2024-01-01T00:00", "2024-01-01T01:00"},
					"temperature_2m": []float64{1},
				})
			},
			variables: []models.Variable{models.Temperature2m},
			wantErr:   true,
		},
		{
			name: "non-numeric samples",
			resp: func(t *testing.T) *models.ForecastResponse {
				return hourlyResponse(t, "UTC", map[string]interface{}{
					"time":           []string{"2024-01-01T00:00"},
					"temperature_2m": []string{"warm"},
				})
			},
			variables: []models.Variable{models.Temperature2m},
			wantErr:   true,
		},
		{
			name: "unparseable timestamp",
			resp: func(t *testing.T) *models.ForecastResponse {
				return hourlyResponse(t, "UTC", map[string]interface{}{
					"time":           []string{"yesterday"},
					"temperature_2m": []float64{1},
				})
			},
			variables: []models.Variable{models.Temperature2m},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := AssembleTable(tt.resp(t), tt.variables)

			if (err != nil) != tt.wantErr {
				t.Fatalf("AssembleTable() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var malformed *models.MalformedResponseError
				if !errors.As(err, &malformed) {
					t.Errorf("error type = %T, want *models.MalformedResponseError", err)
				}
				return
			}
			if tt.checkValues != nil {
				tt.checkValues(t, table)
			}
		})
	}
}

func TestAssembleTable_ErrorBodyIsNotAssembled(t *testing.T) {
	_, err := AssembleTable(&models.ForecastResponse{Error: true, Reason: "Invalid date"}, []models.Variable{models.Temperature2m})

	var apiErr *models.APIError
	if !errors.As(err, &apiErr) || apiErr.Reason != "Invalid date" {
		t.Fatalf("error = %v, want APIError with reason", err)
	}
}
