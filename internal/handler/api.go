package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/T-Rylander/unifi-edtech-stack/internal/service"
)

// APIVersion is this service's own version, independent of the backend's.
const APIVersion = "0.1.0"

// Backend is the slice of the inference client the diagnostic endpoints
// need.
type Backend interface {
	IsHealthy(ctx context.Context) bool
	Version(ctx context.Context) string
}

// Controller reports UniFi controller reachability for the health endpoint.
type Controller interface {
	Reachable() bool
}

// Handler exposes the HTTP surface of the VLAN grouping service.
type Handler struct {
	suggester  *service.Suggester
	backend    Backend
	controller Controller
	logger     *zap.Logger
}

// New creates a new API handler.
func New(suggester *service.Suggester, backend Backend, controller Controller, logger *zap.Logger) *Handler {
	return &Handler{
		suggester:  suggester,
		backend:    backend,
		controller: controller,
		logger:     logger,
	}
}

// Health reports overall service state. "healthy" requires both the backend
// probe and the controller flag to pass; either failing degrades the status
// without failing the request.
func (h *Handler) Health(c *gin.Context) {
	backendUp := h.backend.IsHealthy(c.Request.Context())
	controllerUp := h.controller.Reachable()

	status := "degraded"
	if backendUp && controllerUp {
		status = "healthy"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":               status,
		"backend_reachable":    backendUp,
		"controller_reachable": controllerUp,
		"api_version":          APIVersion,
	})
}

// Version reports the API version and whatever version the backend claims,
// "unknown" included.
func (h *Handler) Version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"api_version":     APIVersion,
		"backend_version": h.backend.Version(c.Request.Context()),
	})
}

// SuggestGrouping runs one grouping request end to end. Validation failures
// map to 400; anything else from the pipeline is a backend failure and maps
// to 500 with the failure detail.
func (h *Handler) SuggestGrouping(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'ssids' or 'devices' in request"})
		return
	}

	suggestion, err := h.suggester.Suggest(c.Request.Context(), body)
	if err != nil {
		if errors.Is(err, service.ErrMissingFields) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'ssids' or 'devices' in request"})
			return
		}
		if errors.Is(err, service.ErrNotArrays) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "'ssids' and 'devices' must be arrays"})
			return
		}
		h.logger.Error("Grouping suggestion failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, suggestion)
}

// RecordFeedback stores a human decision about an earlier suggestion.
func (h *Handler) RecordFeedback(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'timestamp' or 'decision'"})
		return
	}

	if err := h.suggester.RecordFeedback(c.Request.Context(), body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'timestamp' or 'decision'"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "feedback recorded"})
}

// NotFound is the catch-all for unregistered paths.
func (h *Handler) NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found"})
}
