package middleware

import (
	"encoding/json"
	"strings"

	"order-access-service/internal/apperrors"
	"order-access-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const actorKey = "actor"

// DefaultAdminRoles are the roles treated as order administrators
var DefaultAdminRoles = []string{"admin", "super_admin", "order_admin"}

// ActorMiddleware builds the acting user from identity headers. The mesh
// validates the JWT and forwards its claims as x-jwt-claim-* headers; the
// admin proxy sends X-User-ID and friends. A bearer token is read without
// verification as a last resort for local development.
func ActorMiddleware(adminRoles []string) gin.HandlerFunc {
	if len(adminRoles) == 0 {
		adminRoles = DefaultAdminRoles
	}
	admin := make(map[string]bool, len(adminRoles))
	for _, r := range adminRoles {
		admin[strings.ToLower(r)] = true
	}

	return func(c *gin.Context) {
		claims := bearerClaims(c)

		rawID := firstHeader(c, "x-jwt-claim-sub", "X-User-ID")
		if rawID == "" {
			if sub, ok := claims["sub"].(string); ok {
				rawID = sub
			}
		}
		userID, err := uuid.Parse(strings.TrimSpace(rawID))
		if err != nil || userID == uuid.Nil {
			Abort(c, ErrUnauthorized)
			return
		}

		actor := models.Actor{
			ID:        userID,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}

		if header := firstHeader(c, "x-jwt-claim-departments", "X-Department-IDs"); header != "" {
			actor.DepartmentIDs = parseUUIDs(splitList(header))
			actor.DepartmentsKnown = true
		} else if depts, ok := claims["departments"].([]interface{}); ok {
			actor.DepartmentIDs = parseUUIDs(claimStrings(depts))
			actor.DepartmentsKnown = true
		}

		roles := splitList(firstHeader(c, "x-jwt-claim-roles", "X-User-Roles"))
		if len(roles) == 0 {
			if claimed, ok := claims["roles"].([]interface{}); ok {
				roles = claimStrings(claimed)
			}
		}
		for _, role := range roles {
			if admin[strings.ToLower(role)] {
				actor.IsAdmin = true
				break
			}
		}
		if owner := firstHeader(c, "x-jwt-claim-platform_owner"); owner == "true" || owner == "1" {
			actor.IsAdmin = true
		}

		c.Set(actorKey, actor)
		c.Set("user_id", userID.String())
		c.Next()
	}
}

// GetActor returns the actor set by ActorMiddleware
func GetActor(c *gin.Context) (models.Actor, bool) {
	value, exists := c.Get(actorKey)
	if !exists {
		return models.Actor{}, false
	}
	actor, ok := value.(models.Actor)
	return actor, ok
}

// RequireAdmin rejects callers without an administrator role
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			Abort(c, ErrUnauthorized)
			return
		}
		if !actor.IsAdmin {
			Abort(c, apperrors.Forbidden("administrator role required"))
			return
		}
		c.Next()
	}
}

func firstHeader(c *gin.Context, names ...string) string {
	for _, name := range names {
		if v := strings.TrimSpace(c.GetHeader(name)); v != "" {
			return v
		}
	}
	return ""
}

func bearerClaims(c *gin.Context) jwt.MapClaims {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return jwt.MapClaims{}
	}
	token, _, err := jwt.NewParser().ParseUnverified(parts[1], jwt.MapClaims{})
	if err != nil {
		return jwt.MapClaims{}
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return jwt.MapClaims{}
	}
	return claims
}

// splitList accepts a JSON array or a comma separated list
func splitList(header string) []string {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}
	if strings.HasPrefix(header, "[") {
		var values []string
		if err := json.Unmarshal([]byte(header), &values); err == nil {
			return values
		}
		header = strings.Trim(header, "[]")
	}
	var out []string
	for _, part := range strings.Split(header, ",") {
		part = strings.Trim(strings.TrimSpace(part), "\"")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func claimStrings(values []interface{}) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func parseUUIDs(values []string) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		if id, err := uuid.Parse(strings.TrimSpace(v)); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
