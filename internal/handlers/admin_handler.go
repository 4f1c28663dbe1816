package handlers

import (
	"net/http"

	"order-access-service/internal/jobs"
	"order-access-service/internal/middleware"

	"github.com/gin-gonic/gin"
)

// AdminHandler exposes operational endpoints
type AdminHandler struct {
	sweeper jobs.Sweeper
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(sweeper jobs.Sweeper) *AdminHandler {
	return &AdminHandler{sweeper: sweeper}
}

// RunSweep archives every expired order now
// @Summary Run expiration sweep
// @Tags Admin
// @Produce json
// @Success 200 {object} services.SweepResult
// @Failure 403 {object} middleware.ErrorResponse
// @Router /api/v1/admin/sweep [post]
func (h *AdminHandler) RunSweep(c *gin.Context) {
	result, err := h.sweeper.SweepExpired(c.Request.Context())
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
