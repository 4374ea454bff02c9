package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mysterymsg/mystery/internal/security"
	"github.com/mysterymsg/mystery/pkg/response"
)

// SecurityHandler exposes the deployment security audit.
type SecurityHandler struct {
	audit *security.AuditService
}

// NewSecurityHandler returns nil when no audit service is configured so the route is skipped.
func NewSecurityHandler(audit *security.AuditService) *SecurityHandler {
	if audit == nil {
		return nil
	}
	return &SecurityHandler{audit: audit}
}

// GET /api/security/audit
func (h *SecurityHandler) Audit(c *gin.Context) {
	result := h.audit.Run(requestContext(c))
	response.Success(c, http.StatusOK, "", result)
}
