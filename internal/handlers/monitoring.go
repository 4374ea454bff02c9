package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mysterymsg/mystery/internal/app"
	"github.com/mysterymsg/mystery/internal/monitoring"
	"github.com/mysterymsg/mystery/pkg/response"
)

// MonitoringHandler surfaces background job summaries to signed-in operators.
type MonitoringHandler struct {
	jobs *monitoring.JobTracker
	cfg  app.MonitoringConfig
}

// NewMonitoringHandler constructs a monitoring handler. Returns nil when no tracker is configured.
func NewMonitoringHandler(jobs *monitoring.JobTracker, cfg app.MonitoringConfig) *MonitoringHandler {
	if jobs == nil {
		return nil
	}
	return &MonitoringHandler{jobs: jobs, cfg: cfg}
}

// GET /api/monitoring/summary
func (h *MonitoringHandler) Summary(c *gin.Context) {
	endpoint := strings.TrimSpace(h.cfg.Prometheus.Endpoint)
	if endpoint == "" {
		endpoint = "/metrics"
	}

	response.Success(c, http.StatusOK, "", gin.H{
		"jobs": h.jobs.Snapshot(),
		"prometheus": gin.H{
			"enabled":  h.cfg.Prometheus.Enabled,
			"endpoint": endpoint,
		},
	})
}
