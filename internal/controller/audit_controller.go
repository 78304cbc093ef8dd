package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront-orders/internal/audit"
)

type AuditController struct {
	reader audit.Reader
}

func NewAuditController(reader audit.Reader) *AuditController {
	return &AuditController{reader: reader}
}

// GET /api/audit/orders/:id (admin)
func (ctl *AuditController) ListByOrder(c *gin.Context) {
	events, err := ctl.reader.ListByOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, http.StatusOK, events)
}
