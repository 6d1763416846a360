package http

import (
	"net/http"
	"time"

	"github.com/linktally/linktally/pkg/httputils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status" example:"ok"`
	Timestamp string `json:"timestamp" example:"2024-01-15T10:30:00Z"`
}

// HealthHandler handles health and metrics endpoints
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Health returns the health status of the service
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputils.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// Metrics returns Prometheus metrics
func (h *HealthHandler) Metrics() http.Handler {
	return promhttp.Handler()
}
