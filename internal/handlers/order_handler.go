package handlers

import (
	"net/http"
	"time"

	"order-access-service/internal/middleware"
	"order-access-service/internal/models"
	"order-access-service/internal/services"

	"github.com/gin-gonic/gin"
)

// OrderHandler handles HTTP requests for orders and their lifecycle
type OrderHandler struct {
	lifecycle   *services.LifecycleService
	permissions *services.PermissionService
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(lifecycle *services.LifecycleService, permissions *services.PermissionService) *OrderHandler {
	return &OrderHandler{lifecycle: lifecycle, permissions: permissions}
}

// StatusRequest is the body of a status change
type StatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

// PriorityRequest is the body of a priority change
type PriorityRequest struct {
	Priority models.OrderPriority `json:"priority" binding:"required"`
}

// ExpirationRequest is the body of an expiration change
type ExpirationRequest struct {
	ExpirationDate time.Time `json:"expirationDate" binding:"required"`
}

// VisibilityRequest is the body of a visibility change
type VisibilityRequest struct {
	IsPublic *bool `json:"isPublic" binding:"required"`
}

// ArchiveRequest is the body of a manual archive
type ArchiveRequest struct {
	Reason string `json:"reason"`
}

// CreateOrder creates a new order owned by the caller
// @Summary Create order
// @Tags Orders
// @Accept json
// @Produce json
// @Param request body services.CreateOrderInput true "Order"
// @Success 201 {object} models.Order
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /api/v1/orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var input services.CreateOrderInput
	if !bindJSON(c, &input) {
		return
	}

	order, err := h.lifecycle.Create(c.Request.Context(), actor, input)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// ListOrders lists active orders the caller can view
// @Summary List orders
// @Tags Orders
// @Produce json
// @Param status query int false "Status (1-4)"
// @Param priority query int false "Priority (1-4)"
// @Param type query int false "Type (1 incoming, 2 outgoing)"
// @Param departmentId query string false "Department ID"
// @Param mine query bool false "Only orders owned by the caller"
// @Param search query string false "Reference or title search"
// @Param limit query int false "Limit" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	limit, offset := pagination(c)
	input := services.ListOrdersInput{
		OwnedOnly: c.Query("mine") == "true",
		Search:    c.Query("search"),
		Limit:     limit,
		Offset:    offset,
	}
	if input.DepartmentID, ok = queryUUID(c, "departmentId"); !ok {
		return
	}
	status, ok := queryInt(c, "status")
	if !ok {
		return
	}
	if status != nil {
		s := models.OrderStatus(*status)
		input.Status = &s
	}
	priority, ok := queryInt(c, "priority")
	if !ok {
		return
	}
	if priority != nil {
		p := models.OrderPriority(*priority)
		input.Priority = &p
	}
	orderType, ok := queryInt(c, "type")
	if !ok {
		return
	}
	if orderType != nil {
		t := models.OrderType(*orderType)
		input.Type = &t
	}

	views, total, err := h.lifecycle.List(c.Request.Context(), actor, input)
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   views,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetOrder returns one order with the caller's permission on it
// @Summary Get order
// @Tags Orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} services.OrderView
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /api/v1/orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	view, err := h.lifecycle.Get(c.Request.Context(), actor, id)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateOrder changes title and description
// @Summary Update order details
// @Tags Orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param request body services.UpdateOrderInput true "Changes"
// @Success 200 {object} models.Order
// @Router /api/v1/orders/{id} [patch]
func (h *OrderHandler) UpdateOrder(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var input services.UpdateOrderInput
	if !bindJSON(c, &input) {
		return
	}

	order, err := h.lifecycle.UpdateDetails(c.Request.Context(), actor, id, input)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// DeleteOrder deletes an active order. Owner only.
// @Summary Delete order
// @Tags Orders
// @Param id path string true "Order ID"
// @Success 204
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /api/v1/orders/{id} [delete]
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	if err := h.lifecycle.Delete(c.Request.Context(), actor, id); err != nil {
		middleware.Abort(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ChangeStatus moves the order to another status
// @Summary Change order status
// @Tags Orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param request body StatusRequest true "Target status"
// @Success 200 {object} models.Order
// @Router /api/v1/orders/{id}/status [put]
func (h *OrderHandler) ChangeStatus(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.lifecycle.ChangeStatus(c.Request.Context(), actor, id, req.Status)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// GetAllowedStatuses lists statuses reachable from the order's current one
// @Summary Get allowed status transitions
// @Tags Orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/orders/{id}/status/allowed [get]
func (h *OrderHandler) GetAllowedStatuses(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	view, err := h.lifecycle.Get(c.Request.Context(), actor, id)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"current":  view.Order.Status.String(),
		"allowed":  services.GetAllowedStatuses(view.Order.Status),
		"terminal": models.IsTerminalOrderStatus(view.Order.Status),
	})
}

// ChangePriority sets the order priority
// @Summary Change order priority
// @Tags Orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param request body PriorityRequest true "Priority"
// @Success 200 {object} models.Order
// @Router /api/v1/orders/{id}/priority [put]
func (h *OrderHandler) ChangePriority(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req PriorityRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.lifecycle.ChangePriority(c.Request.Context(), actor, id, req.Priority)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// SetExpiration schedules automatic archival
// @Summary Set expiration date
// @Tags Orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param request body ExpirationRequest true "Expiration"
// @Success 200 {object} models.Order
// @Router /api/v1/orders/{id}/expiration [put]
func (h *OrderHandler) SetExpiration(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req ExpirationRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.lifecycle.SetExpiration(c.Request.Context(), actor, id, req.ExpirationDate)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// RemoveExpiration clears the expiration date
// @Summary Remove expiration date
// @Tags Orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} models.Order
// @Router /api/v1/orders/{id}/expiration [delete]
func (h *OrderHandler) RemoveExpiration(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	order, err := h.lifecycle.RemoveExpiration(c.Request.Context(), actor, id)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// SetVisibility makes the order public or private
// @Summary Change visibility
// @Tags Orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param request body VisibilityRequest true "Visibility"
// @Success 200 {object} models.Order
// @Router /api/v1/orders/{id}/visibility [put]
func (h *OrderHandler) SetVisibility(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req VisibilityRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.lifecycle.SetVisibility(c.Request.Context(), actor, id, *req.IsPublic)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ArchiveOrder archives the order on its owner's request
// @Summary Archive order
// @Tags Orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param request body ArchiveRequest false "Reason"
// @Success 201 {object} models.ArchivedOrder
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /api/v1/orders/{id}/archive [post]
func (h *OrderHandler) ArchiveOrder(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var req ArchiveRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}

	archived, err := h.lifecycle.Archive(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, archived)
}

// AddAttachment records attachment metadata
// @Summary Add attachment
// @Tags Orders
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param request body services.AttachmentInput true "Attachment"
// @Success 201 {object} models.OrderAttachment
// @Router /api/v1/orders/{id}/attachments [post]
func (h *OrderHandler) AddAttachment(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	var input services.AttachmentInput
	if !bindJSON(c, &input) {
		return
	}

	attachment, err := h.lifecycle.AddAttachment(c.Request.Context(), actor, id, input)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, attachment)
}

// GetMyPermissions returns the caller's effective permission on the order
// @Summary Get effective permission
// @Tags Permissions
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} models.EffectivePermission
// @Router /api/v1/orders/{id}/permissions/me [get]
func (h *OrderHandler) GetMyPermissions(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}

	perm, err := h.permissions.Effective(c.Request.Context(), actor, id)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, perm)
}
