package handlers

import (
	"github.com/gin-gonic/gin"

	"millstock/internal/core/apperror"
	"millstock/internal/domain/audit"
	"millstock/internal/domain/documents/adjustment"
	"millstock/internal/domain/documents/cyclecount"
	"millstock/internal/domain/documents/dyeing"
	"millstock/internal/domain/documents/purchase"
	"millstock/internal/domain/documents/sales"
)

// auditEntityTypes are the aggregates the engine records transitions for.
var auditEntityTypes = map[string]bool{
	purchase.EntityName:   true,
	sales.EntityName:      true,
	dyeing.EntityName:     true,
	adjustment.EntityName: true,
	cyclecount.EntityName: true,
	"batch":               true,
	"account":             true,
}

// AuditHandler exposes the audit trail read-only.
type AuditHandler struct {
	*BaseHandler
	log audit.Log
}

func NewAuditHandler(base *BaseHandler, log audit.Log) *AuditHandler {
	return &AuditHandler{BaseHandler: base, log: log}
}

// History handles GET /audit/:entityType/:id?limit=.
func (h *AuditHandler) History(c *gin.Context) {
	entityType := c.Param("entityType")
	if !auditEntityTypes[entityType] {
		h.Error(c, apperror.NewValidation("unknown entity type").WithDetail("entityType", entityType))
		return
	}
	entityID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	entries, err := h.log.History(c.Request.Context(), entityType, entityID, h.ParseIntQuery(c, "limit", audit.DefaultHistoryLimit))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, entries)
}
