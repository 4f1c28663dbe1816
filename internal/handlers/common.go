package handlers

import (
	"strconv"

	"order-access-service/internal/apperrors"
	"order-access-service/internal/middleware"
	"order-access-service/internal/models"
	"order-access-service/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// actorFrom returns the request's actor, aborting with 401 when absent
func actorFrom(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		middleware.Abort(c, middleware.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}

// paramUUID parses a path parameter, aborting with a validation error
func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		middleware.Abort(c, apperrors.Validation("invalid %s", name).WithDetail("field", name))
		return uuid.Nil, false
	}
	return id, true
}

// queryUUID parses an optional query parameter
func queryUUID(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		middleware.Abort(c, apperrors.Validation("invalid %s", name).WithDetail("field", name))
		return nil, false
	}
	return &id, true
}

// bindJSON decodes the body, aborting with a validation error on failure
func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		middleware.Abort(c, apperrors.Validation("invalid request body").WithDetail("reason", err.Error()))
		return false
	}
	return true
}

// pagination reads limit and offset with the list defaults
func pagination(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(services.DefaultPageSize)))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > services.MaxPageSize {
		limit = services.DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// queryInt parses an optional integer query parameter
func queryInt(c *gin.Context, name string) (*int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		middleware.Abort(c, apperrors.Validation("invalid %s", name).WithDetail("field", name))
		return nil, false
	}
	return &value, true
}
