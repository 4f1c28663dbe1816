package handlers

import (
	"net/http"
	"strings"

	"order-access-service/internal/apperrors"
	"order-access-service/internal/middleware"
	"order-access-service/internal/repository"
	"order-access-service/internal/services"

	"github.com/gin-gonic/gin"
)

// HistoryHandler serves the audit trail of an order
type HistoryHandler struct {
	audit *services.AuditRecorder
}

// NewHistoryHandler creates a new HistoryHandler
func NewHistoryHandler(audit *services.AuditRecorder) *HistoryHandler {
	return &HistoryHandler{audit: audit}
}

// GetHistory returns a page of the order's history
// @Summary Get order history
// @Tags History
// @Produce json
// @Param id path string true "Order ID"
// @Param sort query string false "asc or desc" default(asc)
// @Param limit query int false "Limit" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} services.HistoryPage
// @Router /api/v1/orders/{id}/history [get]
func (h *HistoryHandler) GetHistory(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	direction := repository.SortDirection(strings.ToLower(c.DefaultQuery("sort", string(repository.SortAsc))))
	if direction != repository.SortAsc && direction != repository.SortDesc {
		middleware.Abort(c, apperrors.Validation("sort must be asc or desc").WithDetail("field", "sort"))
		return
	}
	limit, offset := pagination(c)

	page, err := h.audit.History(c.Request.Context(), actor, id, services.HistoryQuery{
		Direction: direction,
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// CountHistory returns the number of history entries
// @Summary Count order history
// @Tags History
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/orders/{id}/history/count [get]
func (h *HistoryHandler) CountHistory(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	count, err := h.audit.Count(c.Request.Context(), actor, id)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}
