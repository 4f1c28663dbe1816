package handlers

import (
	"net/http"

	"order-access-service/internal/middleware"
	"order-access-service/internal/services"

	"github.com/gin-gonic/gin"
)

// GrantHandler handles direct, department and exception grants
type GrantHandler struct {
	grants *services.GrantService
}

// NewGrantHandler creates a new GrantHandler
func NewGrantHandler(grants *services.GrantService) *GrantHandler {
	return &GrantHandler{grants: grants}
}

// ListGrants returns every grant recorded for the order
// @Summary List grants
// @Tags Permissions
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} models.OrderGrants
// @Router /api/v1/orders/{id}/grants [get]
func (h *GrantHandler) ListGrants(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	grants, err := h.grants.ListGrants(c.Request.Context(), actor, id)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, grants)
}

// GrantDirectPermission grants a user explicit capabilities
// @Summary Grant direct permission
// @Tags Permissions
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param request body services.DirectPermissionInput true "Grant"
// @Success 201 {object} models.DirectPermission
// @Router /api/v1/orders/{id}/permissions [post]
func (h *GrantHandler) GrantDirectPermission(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var input services.DirectPermissionInput
	if !bindJSON(c, &input) {
		return
	}

	grant, err := h.grants.GrantDirectPermission(c.Request.Context(), actor, id, input)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, grant)
}

// RevokeDirectPermission removes every direct grant the user holds
// @Summary Revoke direct permission
// @Tags Permissions
// @Param id path string true "Order ID"
// @Param userId path string true "User ID"
// @Success 204
// @Router /api/v1/orders/{id}/permissions/{userId} [delete]
func (h *GrantHandler) RevokeDirectPermission(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	userID, ok := paramUUID(c, "userId")
	if !ok {
		return
	}

	if err := h.grants.RevokeDirectPermission(c.Request.Context(), actor, id, userID); err != nil {
		middleware.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GrantDepartmentAccess grants a department an access level
// @Summary Grant department access
// @Tags Permissions
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param request body services.DepartmentAccessInput true "Grant"
// @Success 201 {object} models.DepartmentAccess
// @Router /api/v1/orders/{id}/departments [post]
func (h *GrantHandler) GrantDepartmentAccess(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var input services.DepartmentAccessInput
	if !bindJSON(c, &input) {
		return
	}

	grant, err := h.grants.GrantDepartmentAccess(c.Request.Context(), actor, id, input)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, grant)
}

// RevokeDepartmentAccess removes the department's grants
// @Summary Revoke department access
// @Tags Permissions
// @Param id path string true "Order ID"
// @Param departmentId path string true "Department ID"
// @Success 204
// @Router /api/v1/orders/{id}/departments/{departmentId} [delete]
func (h *GrantHandler) RevokeDepartmentAccess(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	departmentID, ok := paramUUID(c, "departmentId")
	if !ok {
		return
	}

	if err := h.grants.RevokeDepartmentAccess(c.Request.Context(), actor, id, departmentID); err != nil {
		middleware.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddUserException excludes a user from department-derived access
// @Summary Add user exception
// @Tags Permissions
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param request body services.UserExceptionInput true "Exception"
// @Success 201 {object} models.UserException
// @Router /api/v1/orders/{id}/exceptions [post]
func (h *GrantHandler) AddUserException(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var input services.UserExceptionInput
	if !bindJSON(c, &input) {
		return
	}

	exception, err := h.grants.AddUserException(c.Request.Context(), actor, id, input)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, exception)
}

// RemoveUserException lifts a user's exclusion
// @Summary Remove user exception
// @Tags Permissions
// @Param id path string true "Order ID"
// @Param userId path string true "User ID"
// @Success 204
// @Router /api/v1/orders/{id}/exceptions/{userId} [delete]
func (h *GrantHandler) RemoveUserException(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	userID, ok := paramUUID(c, "userId")
	if !ok {
		return
	}

	if err := h.grants.RemoveUserException(c.Request.Context(), actor, id, userID); err != nil {
		middleware.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
