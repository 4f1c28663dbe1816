package handlers

import (
	"net/http"

	"order-access-service/internal/middleware"
	"order-access-service/internal/services"

	"github.com/gin-gonic/gin"
)

// ArchiveHandler handles archived order snapshots
type ArchiveHandler struct {
	archives *services.ArchiveService
}

// NewArchiveHandler creates a new ArchiveHandler
func NewArchiveHandler(archives *services.ArchiveService) *ArchiveHandler {
	return &ArchiveHandler{archives: archives}
}

// ListArchives lists archives visible to the caller
// @Summary List archived orders
// @Tags Archives
// @Produce json
// @Param departmentId query string false "Department ID"
// @Param restorable query bool false "Only archives that can still be restored"
// @Param limit query int false "Limit" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/archives [get]
func (h *ArchiveHandler) ListArchives(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	departmentID, ok := queryUUID(c, "departmentId")
	if !ok {
		return
	}
	limit, offset := pagination(c)

	archives, total, err := h.archives.List(c.Request.Context(), actor, services.ArchiveListInput{
		DepartmentID: departmentID,
		OnlyPending:  c.Query("restorable") == "true",
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   archives,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetArchive returns one archive record
// @Summary Get archived order
// @Tags Archives
// @Produce json
// @Param id path string true "Archive ID"
// @Success 200 {object} models.ArchivedOrder
// @Router /api/v1/archives/{id} [get]
func (h *ArchiveHandler) GetArchive(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	archived, err := h.archives.Get(c.Request.Context(), actor, id)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, archived)
}

// RestoreArchive brings an archived order back as pending
// @Summary Restore archived order
// @Tags Archives
// @Produce json
// @Param id path string true "Archive ID"
// @Success 200 {object} models.Order
// @Failure 409 {object} middleware.ErrorResponse
// @Router /api/v1/archives/{id}/restore [post]
func (h *ArchiveHandler) RestoreArchive(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	order, err := h.archives.Restore(c.Request.Context(), actor, id)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// DeleteArchive permanently deletes an archive. Administrators only.
// @Summary Permanently delete archive
// @Tags Archives
// @Param id path string true "Archive ID"
// @Param override query bool false "Required while the archive can still be restored"
// @Success 204
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /api/v1/archives/{id} [delete]
func (h *ArchiveHandler) DeleteArchive(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	if err := h.archives.PermanentlyDelete(c.Request.Context(), actor, id, c.Query("override") == "true"); err != nil {
		middleware.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
