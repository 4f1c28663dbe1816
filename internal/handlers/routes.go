package handlers

import (
	"order-access-service/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Handlers groups the API handlers mounted under /api/v1
type Handlers struct {
	Orders   *OrderHandler
	Grants   *GrantHandler
	History  *HistoryHandler
	Archives *ArchiveHandler
	Admin    *AdminHandler
}

// RegisterRoutes mounts every API route on the group. The group must already
// carry the actor middleware.
func RegisterRoutes(api *gin.RouterGroup, h Handlers) {
	orders := api.Group("/orders")
	{
		orders.POST("", h.Orders.CreateOrder)
		orders.GET("", h.Orders.ListOrders)
		orders.GET("/:id", h.Orders.GetOrder)
		orders.PATCH("/:id", h.Orders.UpdateOrder)
		orders.DELETE("/:id", h.Orders.DeleteOrder)
		orders.PUT("/:id/status", h.Orders.ChangeStatus)
		orders.GET("/:id/status/allowed", h.Orders.GetAllowedStatuses)
		orders.PUT("/:id/priority", h.Orders.ChangePriority)
		orders.PUT("/:id/expiration", h.Orders.SetExpiration)
		orders.DELETE("/:id/expiration", h.Orders.RemoveExpiration)
		orders.PUT("/:id/visibility", h.Orders.SetVisibility)
		orders.POST("/:id/archive", h.Orders.ArchiveOrder)
		orders.POST("/:id/attachments", h.Orders.AddAttachment)
		orders.GET("/:id/permissions/me", h.Orders.GetMyPermissions)

		orders.GET("/:id/grants", h.Grants.ListGrants)
		orders.POST("/:id/permissions", h.Grants.GrantDirectPermission)
		orders.DELETE("/:id/permissions/:userId", h.Grants.RevokeDirectPermission)
		orders.POST("/:id/departments", h.Grants.GrantDepartmentAccess)
		orders.DELETE("/:id/departments/:departmentId", h.Grants.RevokeDepartmentAccess)
		orders.POST("/:id/exceptions", h.Grants.AddUserException)
		orders.DELETE("/:id/exceptions/:userId", h.Grants.RemoveUserException)

		orders.GET("/:id/history", h.History.GetHistory)
		orders.GET("/:id/history/count", h.History.CountHistory)
	}

	archives := api.Group("/archives")
	{
		archives.GET("", h.Archives.ListArchives)
		archives.GET("/:id", h.Archives.GetArchive)
		archives.POST("/:id/restore", h.Archives.RestoreArchive)
		archives.DELETE("/:id", h.Archives.DeleteArchive)
	}

	admin := api.Group("/admin", middleware.RequireAdmin())
	{
		admin.POST("/sweep", h.Admin.RunSweep)
	}
}
