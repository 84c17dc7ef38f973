package handlers

import (
	"encoding/json"
	"net/http"

	"agriweather/internal/models"
	"agriweather/internal/services"
)

func queryParameter(name, description string, required bool, schema map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"in":          "query",
		"description": description,
		"required":    required,
		"schema":      schema,
	}
}

func forecastParameters() []map[string]interface{} {
	variables := make([]string, 0, len(models.Catalog))
	for _, v := range models.Catalog {
		variables = append(variables, string(v))
	}

	return []map[string]interface{}{
		queryParameter("latitude", "Latitude in decimal degrees (-90 to 90)", true,
			map[string]interface{}{"type": "number", "minimum": -90, "maximum": 90}),
		queryParameter("longitude", "Longitude in decimal degrees (-180 to 180)", true,
			map[string]interface{}{"type": "number", "minimum": -180, "maximum": 180}),
		queryParameter("start_date", "First day, inclusive (YYYY-MM-DD, default today)", false,
			map[string]interface{}{"type": "string", "format": "date"}),
		queryParameter("end_date", "Last day, inclusive (YYYY-MM-DD, default today)", false,
			map[string]interface{}{"type": "string", "format": "date"}),
		{
			"name":        "variables",
			"in":          "query",
			"description": "Hourly variables, comma-separated or repeated; \"hourly\" is accepted as an alias",
			"required":    false,
			"style":       "form",
			"explode":     false,
			"schema": map[string]interface{}{
				"type":    "array",
				"items":   map[string]interface{}{"type": "string", "enum": variables},
				"default": models.DefaultVariables,
			},
		},
	}
}

func errorResponses() map[string]interface{} {
	ref := map[string]interface{}{
		"application/json": map[string]interface{}{
			"schema": map[string]string{"$ref": "#/components/schemas/ErrorResponse"},
		},
	}
	return map[string]interface{}{
		"400": map[string]interface{}{"description": "Invalid input or error reported by the forecast API", "content": ref},
		"502": map[string]interface{}{"description": "Forecast API unreachable or returned a malformed response", "content": ref},
	}
}

func withResponse(code string, response map[string]interface{}) map[string]interface{} {
	responses := errorResponses()
	responses[code] = response
	return responses
}

// OpenAPISpec returns the OpenAPI 3.0 specification for the AgriWeather API
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	formats := make([]string, 0, len(services.Formats))
	for _, f := range services.Formats {
		formats = append(formats, string(f))
	}

	metric := map[string]interface{}{
		"type":     "object",
		"nullable": true,
		"properties": map[string]interface{}{
			"label":   map[string]string{"type": "string"},
			"value":   map[string]string{"type": "number"},
			"unit":    map[string]string{"type": "string"},
			"display": map[string]string{"type": "string"},
			"samples": map[string]string{"type": "integer"},
		},
	}

	spec := map[string]interface{}{
		"openapi": "3.0.0",
		"info": map[string]interface{}{
			"title":       "AgriWeather API",
			"description": "Hourly Open-Meteo forecasts for a point and date range, with summary metrics, charts and downloads",
			"version":     "1.0.0",
		},
		"servers": []map[string]string{
			{"url": "http://localhost:8080", "description": "Local development server"},
		},
		"paths": map[string]interface{}{
			"/api/weather": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Get a weather report",
					"description": "Fetch hourly data and return the table, summary metrics and chart series",
					"parameters":  forecastParameters(),
					"responses": withResponse("200", map[string]interface{}{
						"description": "Successful response",
						"content": map[string]interface{}{
							"application/json": map[string]interface{}{
								"schema": map[string]string{"$ref": "#/components/schemas/WeatherReport"},
							},
						},
					}),
				},
			},
			"/api/weather/export/{format}": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Download weather data",
					"description": "Fetch hourly data and return it as a weather_data.<format> attachment",
					"parameters": append([]map[string]interface{}{
						{
							"name":     "format",
							"in":       "path",
							"required": true,
							"schema":   map[string]interface{}{"type": "string", "enum": formats},
						},
					}, forecastParameters()...),
					"responses": withResponse("200", map[string]interface{}{
						"description": "File download",
						"content": map[string]interface{}{
							"application/json":         map[string]interface{}{"schema": map[string]string{"type": "string"}},
							"text/csv":                 map[string]interface{}{"schema": map[string]string{"type": "string"}},
							"application/vnd.ms-excel": map[string]interface{}{"schema": map[string]string{"type": "string", "format": "binary"}},
						},
					}),
				},
			},
			"/api/variables": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "List selectable variables",
					"description": "Variable catalog with labels, units and default selection, plus export formats",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{"description": "Catalog"},
					},
				},
			},
			"/health": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Health check",
					"description": "Check if the API is running",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "API is healthy",
							"content": map[string]interface{}{
								"application/json": map[string]interface{}{
									"schema": map[string]interface{}{
										"type": "object",
										"properties": map[string]interface{}{
											"status":    map[string]string{"type": "string"},
											"timestamp": map[string]string{"type": "string", "format": "date-time"},
										},
									},
								},
							},
						},
					},
				},
			},
			"/metrics": map[string]interface{}{
				"get": map[string]interface{}{
					"summary":     "Prometheus metrics",
					"description": "Prometheus metrics endpoint for monitoring",
					"responses": map[string]interface{}{
						"200": map[string]interface{}{
							"description": "Prometheus metrics in text format",
							"content": map[string]interface{}{
								"text/plain": map[string]interface{}{
									"schema": map[string]string{"type": "string"},
								},
							},
						},
					},
				},
			},
		},
		"components": map[string]interface{}{
			"schemas": map[string]interface{}{
				"ErrorResponse": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"error":   map[string]string{"type": "string"},
						"message": map[string]string{"type": "string"},
						"code":    map[string]string{"type": "integer"},
					},
				},
				"WeatherReport": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"query":    map[string]string{"type": "object"},
						"location": map[string]string{"type": "object"},
						"summary": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"average_temperature":   metric,
								"total_precipitation":   metric,
								"average_soil_moisture": metric,
								"average_humidity":      metric,
							},
						},
						"charts":  map[string]interface{}{"type": "array", "items": map[string]string{"type": "object"}},
						"columns": map[string]interface{}{"type": "array", "items": map[string]string{"type": "string"}},
						"rows": map[string]interface{}{
							"type":        "array",
							"description": "One object per hour; time is epoch milliseconds, missing samples are null",
							"items":       map[string]string{"type": "object"},
						},
						"row_count":  map[string]string{"type": "integer"},
						"fetched_at": map[string]string{"type": "string", "format": "date-time"},
					},
				},
			},
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(spec)
}
