package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/blueprint-desktop/exthost/internal/infrastructure/monitoring"
)

// MetricsHandlers serves the renderer-facing metrics snapshot. The
// Prometheus exposition endpoint lives next to it on /metrics; this one
// returns the condensed JSON the settings page renders directly.
type MetricsHandlers struct {
	metrics *monitoring.Metrics
}

// NewMetricsHandlers creates metrics handlers
func NewMetricsHandlers(metrics *monitoring.Metrics) *MetricsHandlers {
	return &MetricsHandlers{metrics: metrics}
}

// Snapshot returns current metric values as JSON
func (m *MetricsHandlers) Snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"metrics":   m.metrics.GetSnapshot(),
		"timestamp": time.Now().Unix(),
	})
}
