package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ternarybob/relatio/internal/common"
	"github.com/ternarybob/relatio/internal/models"
)

// Response headers naming the report a request produced or served.
// The request logger reads them to correlate access logs with the pipeline.
const (
	HeaderReportID       = "X-Report-Id"
	HeaderReportDegraded = "X-Report-Degraded"
)

// SetReportHeaders tags the response with the report it concerns
func SetReportHeaders(w http.ResponseWriter, report *models.Report) {
	w.Header().Set(HeaderReportID, report.ID)
	w.Header().Set(HeaderReportDegraded, strconv.FormatBool(report.Degraded))
}

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteAppError maps err to a status code and writes its user-facing message.
// Internal errors are reported generically.
func WriteAppError(w http.ResponseWriter, err error) error {
	status := common.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		return WriteError(w, status, "Internal server error")
	}

	message := err.Error()
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	return WriteError(w, status, message)
}

// GetListParams extracts limit and offset from the query string.
// Limit defaults to 20 and is capped at 100.
func GetListParams(r *http.Request) (limit, offset int) {
	limit = 20

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	return limit, offset
}
