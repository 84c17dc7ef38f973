package services

import (
	"encoding/json"
	"fmt"
	"time"

	"agriweather/internal/models"
)

// forecastTimeLayout is the API's default iso8601 timestamp format (no seconds, no offset)
const forecastTimeLayout = "2006-01-02T15:04"

// AssembleTable converts the columnar hourly block of a successful response into
// a WeatherTable with one column per selected variable. Hourly keys that were
// not selected are ignored. Any shape problem yields *models.MalformedResponseError.
func AssembleTable(resp *models.ForecastResponse, variables []models.Variable) (*models.WeatherTable, error) {
	if resp == nil {
		return nil, &models.MalformedResponseError{Detail: "empty response"}
	}
	if resp.Error {
		return nil, &models.APIError{Reason: resp.Reason}
	}
	if resp.Hourly == nil {
		return nil, &models.MalformedResponseError{Detail: `"hourly" is absent`}
	}

	rawTimes, ok := resp.Hourly[models.TimeColumn]
	if !ok {
		return nil, &models.MalformedResponseError{Detail: `"hourly.time" is absent`}
	}
	var timeStrings []string
	if err := json.Unmarshal(rawTimes, &timeStrings); err != nil {
		return nil, &models.MalformedResponseError{Detail: `decode "hourly.time"`, Err: err}
	}

	loc := responseLocation(resp.Timezone)
	times := make([]time.Time, len(timeStrings))
	for i, s := range timeStrings {
		ts, err := parseForecastTime(s, loc)
		if err != nil {
			return nil, &models.MalformedResponseError{Detail: fmt.Sprintf("parse time[%d] %q", i, s), Err: err}
		}
		times[i] = ts
	}

	table := &models.WeatherTable{
		Times:   times,
		Columns: make([]models.Variable, 0, len(variables)),
		Values:  make(map[models.Variable][]*float64, len(variables)),
		Units:   make(map[models.Variable]string, len(variables)),
	}

	for _, v := range variables {
		if table.HasColumn(v) {
			continue
		}
		raw, ok := resp.Hourly[string(v)]
		if !ok {
			return nil, &models.MalformedResponseError{Detail: fmt.Sprintf("column %q is absent", v)}
		}

		var samples []*float64
		if err := json.Unmarshal(raw, &samples); err != nil {
			return nil, &models.MalformedResponseError{Detail: fmt.Sprintf("decode column %q", v), Err: err}
		}
		if len(samples) != len(times) {
			return nil, &models.MalformedResponseError{
				Detail: fmt.Sprintf("column %q has %d samples, time has %d", v, len(samples), len(times)),
			}
		}

		unit := v.Unit()
		if u, ok := resp.HourlyUnits[string(v)]; ok && u != "" {
			unit = u
		}

		table.Columns = append(table.Columns, v)
		table.Values[v] = samples
		table.Units[v] = unit
	}

	return table, nil
}

func responseLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func parseForecastTime(s string, loc *time.Location) (time.Time, error) {
	if ts, err := time.ParseInLocation(forecastTimeLayout, s, loc); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, s)
}
