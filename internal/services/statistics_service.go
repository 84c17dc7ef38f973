package services

import (
	"fmt"

	"agriweather/internal/models"
)

// Summarize reduces a table to its headline metrics. Missing samples are skipped;
// a metric is nil when its column is absent or holds no samples.
func Summarize(table *models.WeatherTable) models.SummaryMetrics {
	var s models.SummaryMetrics
	if table == nil {
		return s
	}

	if sum, n := reduce(table.Column(models.Temperature2m)); n > 0 {
		mean := sum / float64(n)
		s.AverageTemperature = &models.Metric{
			Label:   "Avg Temperature",
			Value:   mean,
			Unit:    "°C",
			Display: fmt.Sprintf("%.1f°C", mean),
			Samples: n,
		}
	}

	if sum, n := reduce(table.Column(models.Precipitation)); n > 0 {
		s.TotalPrecipitation = &models.Metric{
			Label:   "Total Rainfall",
			Value:   sum,
			Unit:    "mm",
			Display: fmt.Sprintf("%.1f mm", sum),
			Samples: n,
		}
	}

	if sum, n := reduce(table.Column(models.SoilMoisture0To1cm)); n > 0 {
		mean := sum / float64(n)
		s.AverageSoilMoisture = &models.Metric{
			Label:   "Soil Moisture",
			Value:   mean,
			Unit:    "m³/m³",
			Display: fmt.Sprintf("%.2f m³/m³", mean),
			Samples: n,
		}
	}

	if sum, n := reduce(table.Column(models.RelativeHumidity2m)); n > 0 {
		mean := sum / float64(n)
		s.AverageHumidity = &models.Metric{
			Label:   "Avg Humidity",
			Value:   mean,
			Unit:    "%",
			Display: fmt.Sprintf("%.0f%%", mean),
			Samples: n,
		}
	}

	return s
}

// reduce returns the sum and count of non-missing samples
func reduce(samples []*float64) (float64, int) {
	var sum float64
	n := 0
	for _, v := range samples {
		if v == nil {
			continue
		}
		sum += *v
		n++
	}
	return sum, n
}

var chartKinds = []struct {
	variable models.Variable
	title    string
	kind     string
}{
	{models.Temperature2m, "Hourly Temperature", "line"},
	{models.Precipitation, "Hourly Precipitation", "bar"},
}

// BuildCharts returns the temperature trend (line) and precipitation trend (bar)
// series for the columns present in table. Missing samples are skipped.
func BuildCharts(table *models.WeatherTable) []models.ChartSeries {
	charts := make([]models.ChartSeries, 0, len(chartKinds))
	if table == nil {
		return charts
	}

	for _, kind := range chartKinds {
		if !table.HasColumn(kind.variable) {
			continue
		}
		samples := table.Column(kind.variable)
		points := make([]models.ChartPoint, 0, len(samples))
		for i, v := range samples {
			if v == nil {
				continue
			}
			points = append(points, models.ChartPoint{Time: table.Times[i], Value: *v})
		}
		charts = append(charts, models.ChartSeries{
			Variable: kind.variable,
			Title:    kind.title,
			Kind:     kind.kind,
			Unit:     table.Units[kind.variable],
			Points:   points,
		})
	}
	return charts
}
