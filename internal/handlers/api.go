package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/relatio/internal/common"
	"github.com/ternarybob/relatio/internal/interfaces"
)

type APIHandler struct {
	model  interfaces.ModelService
	logger arbor.ILogger
}

func NewAPIHandler(model interfaces.ModelService, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		model:  model,
		logger: logger,
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, common.GetVersionInfo())
}

// HealthHandler returns health check status. The service stays healthy
// without a model, since reports then degrade to placeholders.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	model := "ok"
	if err := h.model.HealthCheck(r.Context()); err != nil {
		h.logger.Debug().Err(err).Msg("Model health check failed")
		model = "unavailable"
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"model":  model,
	})
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
