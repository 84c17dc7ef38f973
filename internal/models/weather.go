package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar date format used by the forecast API and the HTTP surface
const DateLayout = "2006-01-02"

// Variable is one hourly weather quantity offered by the forecast API
type Variable string

const (
	Temperature2m      Variable = "temperature_2m"
	RelativeHumidity2m Variable = "relative_humidity_2m"
	Precipitation      Variable = "precipitation"
	SoilMoisture0To1cm Variable = "soil_moisture_0_to_1cm"
)

// Catalog lists the selectable variables in display order
var Catalog = []Variable{
	Temperature2m,
	RelativeHumidity2m,
	Precipitation,
	SoilMoisture0To1cm,
}

// DefaultVariables is the selection used when the caller supplies none
var DefaultVariables = []Variable{Temperature2m, Precipitation}

var variableInfo = map[Variable]struct {
	label string
	unit  string
}{
	Temperature2m:      {"Temperature (2 m)", "°C"},
	RelativeHumidity2m: {"Relative Humidity (2 m)", "%"},
	Precipitation:      {"Precipitation", "mm"},
	SoilMoisture0To1cm: {"Soil Moisture (0-1 cm)", "m³/m³"},
}

// Valid reports whether v belongs to the catalog
func (v Variable) Valid() bool {
	_, ok := variableInfo[v]
	return ok
}

// Label returns the human-readable name of v
func (v Variable) Label() string {
	return variableInfo[v].label
}

// Unit returns the unit the forecast API reports v in, given the fixed unit selections
func (v Variable) Unit() string {
	return variableInfo[v].unit
}

// VariableInfo describes a catalog entry for the presentation layer
type VariableInfo struct {
	Name    Variable `json:"name"`
	Label   string   `json:"label"`
	Unit    string   `json:"unit"`
	Default bool     `json:"default"`
}

// DescribeCatalog returns the catalog with labels, units and default flags
func DescribeCatalog() []VariableInfo {
	defaults := make(map[Variable]bool, len(DefaultVariables))
	for _, v := range DefaultVariables {
		defaults[v] = true
	}

	out := make([]VariableInfo, 0, len(Catalog))
	for _, v := range Catalog {
		out = append(out, VariableInfo{Name: v, Label: v.Label(), Unit: v.Unit(), Default: defaults[v]})
	}
	return out
}

// QueryInput carries raw, unvalidated user input as it arrives from a form or query string
type QueryInput struct {
	Latitude  string
	Longitude string
	StartDate string
	EndDate   string
	Variables []string
}

// QueryParameters is a validated forecast request. It is passed by value and
// never mutated once built.
type QueryParameters struct {
	Latitude  float64    `json:"latitude"`
	Longitude float64    `json:"longitude"`
	StartDate time.Time  `json:"-"`
	EndDate   time.Time  `json:"-"`
	Variables []Variable `json:"variables"`
}

// MarshalJSON renders dates as YYYY-MM-DD
func (q QueryParameters) MarshalJSON() ([]byte, error) {
	type alias QueryParameters
	return json.Marshal(struct {
		alias
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}{
		alias:     alias(q),
		StartDate: q.StartDate.Format(DateLayout),
		EndDate:   q.EndDate.Format(DateLayout),
	})
}

// ParseQueryParameters validates raw input and builds QueryParameters.
// Empty dates default to today (UTC); an empty selection defaults to DefaultVariables.
func ParseQueryParameters(in QueryInput, now time.Time) (QueryParameters, error) {
	lat, err := parseCoordinate("latitude", in.Latitude, 90)
	if err != nil {
		return QueryParameters{}, err
	}
	lon, err := parseCoordinate("longitude", in.Longitude, 180)
	if err != nil {
		return QueryParameters{}, err
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start, err := parseDate("start_date", in.StartDate, today)
	if err != nil {
		return QueryParameters{}, err
	}
	end, err := parseDate("end_date", in.EndDate, today)
	if err != nil {
		return QueryParameters{}, err
	}

	vars, err := ParseVariables(in.Variables)
	if err != nil {
		return QueryParameters{}, err
	}

	q := QueryParameters{
		Latitude:  lat,
		Longitude: lon,
		StartDate: start,
		EndDate:   end,
		Variables: vars,
	}
	if err := q.Validate(); err != nil {
		return QueryParameters{}, err
	}
	return q, nil
}

// ParseVariables accepts names individually or comma-joined, drops duplicates
// (first occurrence wins) and rejects names outside the catalog.
func ParseVariables(raw []string) ([]Variable, error) {
	var out []Variable
	seen := make(map[Variable]bool)
	for _, item := range raw {
		for _, name := range strings.Split(item, ",") {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			v := Variable(name)
			if !v.Valid() {
				return nil, &ValidationError{
					Field:   "variables",
					Value:   name,
					Message: "unknown variable " + strconv.Quote(name),
				}
			}
			if seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}

	if len(out) == 0 {
		return append([]Variable(nil), DefaultVariables...), nil
	}
	return out, nil
}

// Validate checks the invariants of an already-typed QueryParameters value
func (q QueryParameters) Validate() error {
	if q.Latitude < -90 || q.Latitude > 90 {
		return &ValidationError{Field: "latitude", Value: formatFloat(q.Latitude), Message: "latitude must be between -90 and 90"}
	}
	if q.Longitude < -180 || q.Longitude > 180 {
		return &ValidationError{Field: "longitude", Value: formatFloat(q.Longitude), Message: "longitude must be between -180 and 180"}
	}
	if q.StartDate.IsZero() {
		return &ValidationError{Field: "start_date", Message: "start_date is required"}
	}
	if q.EndDate.IsZero() {
		return &ValidationError{Field: "end_date", Message: "end_date is required"}
	}
	if q.EndDate.Before(q.StartDate) {
		return &ValidationError{
			Field:   "end_date",
			Value:   q.EndDate.Format(DateLayout),
			Message: "end_date must not be before start_date",
		}
	}
	if len(q.Variables) == 0 {
		return &ValidationError{Field: "variables", Message: "at least one variable must be selected"}
	}
	for _, v := range q.Variables {
		if !v.Valid() {
			return &ValidationError{Field: "variables", Value: string(v), Message: "unknown variable " + strconv.Quote(string(v))}
		}
	}
	return nil
}

func parseCoordinate(field, raw string, limit float64) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, &ValidationError{Field: field, Message: field + " is required"}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) {
		return 0, &ValidationError{Field: field, Value: raw, Message: "invalid " + field + ", expected decimal degrees"}
	}
	if v < -limit || v > limit {
		return 0, &ValidationError{
			Field:   field,
			Value:   raw,
			Message: field + " must be between -" + formatFloat(limit) + " and " + formatFloat(limit),
		}
	}
	return v, nil
}

func parseDate(field, raw string, fallback time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, &ValidationError{
			Field:   field,
			Value:   raw,
			Message: "invalid " + field + " format, expected YYYY-MM-DD",
		}
	}
	return d, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ForecastResponse is the decoded forecast API body. Either Error is set with a
// Reason, or Hourly holds the columnar samples keyed by variable name plus "time".
type ForecastResponse struct {
	Error       bool                       `json:"error,omitempty"`
	Reason      string                     `json:"reason,omitempty"`
	Latitude    float64                    `json:"latitude"`
	Longitude   float64                    `json:"longitude"`
	Elevation   float64                    `json:"elevation"`
	Timezone    string                     `json:"timezone"`
	HourlyUnits map[string]string          `json:"hourly_units,omitempty"`
	Hourly      map[string]json.RawMessage `json:"hourly,omitempty"`
}

// WeatherTable holds one row per hourly timestamp and one column per selected variable.
// A nil sample marks a value the forecast API reported as null.
type WeatherTable struct {
	Times   []time.Time
	Columns []Variable
	Values  map[Variable][]*float64
	Units   map[Variable]string
}

// TimeColumn is the header name of the timestamp column
const TimeColumn = "time"

// RowCount returns the number of hourly rows
func (t *WeatherTable) RowCount() int {
	return len(t.Times)
}

// HasColumn reports whether v was assembled into the table
func (t *WeatherTable) HasColumn(v Variable) bool {
	_, ok := t.Values[v]
	return ok
}

// Column returns the samples for v, or nil when the column is absent
func (t *WeatherTable) Column(v Variable) []*float64 {
	return t.Values[v]
}

// Header returns the column names in export order: time first, then variables
func (t *WeatherTable) Header() []string {
	header := make([]string, 0, len(t.Columns)+1)
	header = append(header, TimeColumn)
	for _, c := range t.Columns {
		header = append(header, string(c))
	}
	return header
}

// Metric is one headline figure derived from a WeatherTable
type Metric struct {
	Label   string  `json:"label"`
	Value   float64 `json:"value"`
	Unit    string  `json:"unit"`
	Display string  `json:"display"`
	Samples int     `json:"samples"`
}

// SummaryMetrics holds the headline figures. A nil field means the variable was
// not selected or had no samples.
type SummaryMetrics struct {
	AverageTemperature  *Metric `json:"average_temperature"`
	TotalPrecipitation  *Metric `json:"total_precipitation"`
	AverageSoilMoisture *Metric `json:"average_soil_moisture"`
	AverageHumidity     *Metric `json:"average_humidity"`
}

// ChartPoint is one sample on a chart series
type ChartPoint struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// ChartSeries feeds one chart in the presentation layer
type ChartSeries struct {
	Variable Variable     `json:"variable"`
	Title    string       `json:"title"`
	Kind     string       `json:"kind"` // "line" or "bar"
	Unit     string       `json:"unit"`
	Points   []ChartPoint `json:"points"`
}

// Location is where the forecast was computed, used for the map
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation"`
	Timezone  string  `json:"timezone"`
}

// WeatherReport is everything the presentation layer renders after one fetch
type WeatherReport struct {
	Query     QueryParameters `json:"query"`
	Location  Location        `json:"location"`
	Summary   SummaryMetrics  `json:"summary"`
	Charts    []ChartSeries   `json:"charts"`
	Columns   []string        `json:"columns"`
	Rows      []Record        `json:"rows"`
	RowCount  int             `json:"row_count"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// Record is one table row keyed by column name. It marshals to a JSON object
// whose keys keep column order.
type Record struct {
	Keys   []string
	Values []interface{}
}

// MarshalJSON writes the record as an object with keys in column order
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		var v interface{}
		if i < len(r.Values) {
			v = r.Values[i]
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Artifact is one encoded download
type Artifact struct {
	FileName string
	MimeType string
	Data     []byte
}
