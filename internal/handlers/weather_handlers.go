package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"agriweather/internal/models"
	"agriweather/internal/services"
	"agriweather/pkg/logging"
	"agriweather/pkg/metrics"
)

// WeatherHandler handles weather API endpoints
type WeatherHandler struct {
	weatherService *services.WeatherService
	logger         *logging.StructuredLogger
	metrics        *metrics.Collector
	now            func() time.Time
}

// NewWeatherHandler creates a new weather handler
func NewWeatherHandler(
	weatherService *services.WeatherService,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *WeatherHandler {
	return &WeatherHandler{
		weatherService: weatherService,
		logger:         logger,
		metrics:        metricsCollector,
		now:            time.Now,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// CatalogResponse lists the selectable hourly variables
type CatalogResponse struct {
	Variables []models.VariableInfo `json:"variables"`
	Formats   []services.Format     `json:"formats"`
}

// GetWeather handles GET /api/weather
func (h *WeatherHandler) GetWeather(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/weather"
	ctx := r.Context()
	timer := h.metrics.NewTimer(h.metrics.APIRequestDuration.WithLabelValues(endpoint))
	defer timer.ObserveDuration()

	params, err := h.parseQuery(r)
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	report, err := h.weatherService.FetchReport(ctx, params)
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	h.sendJSON(w, report, http.StatusOK)
}

// ExportWeather handles GET /api/weather/export/{format}
func (h *WeatherHandler) ExportWeather(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/weather/export"
	ctx := r.Context()
	timer := h.metrics.NewTimer(h.metrics.APIRequestDuration.WithLabelValues(endpoint))
	defer timer.ObserveDuration()

	format, err := services.ParseFormat(mux.Vars(r)["format"])
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	params, err := h.parseQuery(r)
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	artifact, err := h.weatherService.Export(ctx, params, format)
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, r.Method, "200")
	w.Header().Set("Content-Type", artifact.MimeType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+artifact.FileName+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Data)))
	w.WriteHeader(http.StatusOK)
	log := h.logger.WithFields(logging.Fields{"endpoint": endpoint, "format": format})
	if _, err := w.Write(artifact.Data); err != nil {
		log.Warn(ctx, "[API_EXPORT_WRITE] Client went away during download", logging.Fields{
			"error": err.Error(),
		})
		return
	}
	log.Debug(ctx, "[API_EXPORT] Download served", logging.Fields{
		"bytes": len(artifact.Data),
	})
}

// GetVariables handles GET /api/variables
func (h *WeatherHandler) GetVariables(w http.ResponseWriter, r *http.Request) {
	h.metrics.RecordAPIRequest("/api/variables", r.Method, "200")
	h.sendJSON(w, CatalogResponse{
		Variables: models.DescribeCatalog(),
		Formats:   services.Formats,
	}, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *WeatherHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

// parseQuery reads the dashboard's form fields from the query string.
// Variables may be comma-joined or repeated, under "variables" or "hourly".
func (h *WeatherHandler) parseQuery(r *http.Request) (models.QueryParameters, error) {
	q := r.URL.Query()
	vars := q["variables"]
	if len(vars) == 0 {
		vars = q["hourly"]
	}

	return models.ParseQueryParameters(models.QueryInput{
		Latitude:  q.Get("latitude"),
		Longitude: q.Get("longitude"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		Variables: vars,
	}, h.now())
}

// handleError maps pipeline errors onto HTTP responses
func (h *WeatherHandler) handleError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	ctx := r.Context()
	status, errorType, message := classifyError(err)

	log := h.logger.WithFields(logging.Fields{
		"endpoint":   endpoint,
		"error_type": errorType,
		"status":     status,
	})
	if format := mux.Vars(r)["format"]; format != "" {
		log = log.WithFields(logging.Fields{"format": format})
	}

	if status >= http.StatusInternalServerError {
		log.Error(ctx, "[API_UPSTREAM_ERROR] Forecast request failed", logging.Fields{}, err)
	} else {
		log.Warn(ctx, "[API_REQUEST_REJECTED] Request rejected", logging.Fields{"error": err.Error()})
	}

	h.metrics.RecordAPIError(errorType, endpoint)
	h.metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(status))
	h.sendError(w, message, status)
}

func classifyError(err error) (status int, errorType, message string) {
	var (
		validationErr *models.ValidationError
		apiErr        *models.APIError
		networkErr    *models.NetworkError
		malformedErr  *models.MalformedResponseError
	)

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, "validation_error", validationErr.Error()
	case errors.As(err, &apiErr):
		return http.StatusBadRequest, "api_error", apiErr.Error()
	case errors.As(err, &networkErr):
		return http.StatusBadGateway, "network_error", "Error fetching data: " + networkErr.Error()
	case errors.As(err, &malformedErr):
		return http.StatusBadGateway, "malformed_response", "Error fetching data: " + malformedErr.Error()
	}
	return http.StatusInternalServerError, "internal_error", "internal server error"
}

// sendJSON sends a JSON response
func (h *WeatherHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *WeatherHandler) sendError(w http.ResponseWriter, message string, statusCode int) {
	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all weather API routes
func (h *WeatherHandler) RegisterRoutes(router *mux.Router) {
	router.Use(RequestIDMiddleware)

	router.HandleFunc("/api/weather", h.GetWeather).Methods(http.MethodGet)
	router.HandleFunc("/api/weather/export/{format}", h.ExportWeather).Methods(http.MethodGet)
	router.HandleFunc("/api/variables", h.GetVariables).Methods(http.MethodGet)
	router.HandleFunc("/api/docs", SwaggerUI).Methods(http.MethodGet)
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods(http.MethodGet)
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
}
