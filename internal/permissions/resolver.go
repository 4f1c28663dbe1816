// Package permissions computes effective permissions. Resolve is pure: it
// reads nothing but its arguments and the result depends only on them.
package permissions

import (
	"time"

	"order-access-service/internal/models"

	"github.com/google/uuid"
)

// Resolve evaluates the precedence chain for one actor on one order:
// owner, active exception, latest direct grant, highest department level,
// public visibility, none. The first tier that matches wins. Every expiry
// check uses the same now.
func Resolve(order *models.Order, grants *models.OrderGrants, actor models.Actor, now time.Time) models.EffectivePermission {
	result := models.EffectivePermission{
		OrderID: order.ID,
		UserID:  actor.ID,
		Source:  models.SourceNone,
	}

	isOwner := order.IsOwnedBy(actor.ID)
	result.IsOwner = isOwner

	// Archived orders are reachable only through the archive endpoints.
	if order.IsArchived {
		return result
	}

	if isOwner {
		return withCapabilities(result, fullCapabilities(), models.SourceOwner)
	}

	if grants == nil {
		grants = &models.OrderGrants{}
	}

	if hasActiveException(grants.Exceptions, order.ID, actor.ID, now) {
		result.IsExcluded = true
		return result
	}

	if direct := LatestDirect(grants.Direct, order.ID, actor.ID, now); direct != nil {
		return withCapabilities(result, capabilitiesFromDirect(direct), models.SourceDirect)
	}

	if level, ok := HighestDepartmentLevel(grants.Departments, order.ID, actor.DepartmentIDs, now); ok {
		return withCapabilities(result, capabilitiesForLevel(level), models.SourceDepartment)
	}

	if order.IsPublic {
		return withCapabilities(result, capabilitySet{view: true}, models.SourcePublic)
	}

	return result
}

// LatestDirect picks the most recent effective direct grant of the user.
// Ties on GrantedAt fall back to the larger ID so the pick is stable.
func LatestDirect(grants []models.DirectPermission, orderID, userID uuid.UUID, now time.Time) *models.DirectPermission {
	var latest *models.DirectPermission
	for i := range grants {
		g := &grants[i]
		if g.OrderID != orderID || g.UserID != userID || !g.IsEffectiveAt(now) {
			continue
		}
		if latest == nil || g.GrantedAt.After(latest.GrantedAt) ||
			(g.GrantedAt.Equal(latest.GrantedAt) && g.ID.String() > latest.ID.String()) {
			latest = g
		}
	}
	return latest
}

// HighestDepartmentLevel returns the highest effective level granted to any
// of the given departments
func HighestDepartmentLevel(grants []models.DepartmentAccess, orderID uuid.UUID, departmentIDs []uuid.UUID, now time.Time) (models.AccessLevel, bool) {
	if len(departmentIDs) == 0 {
		return 0, false
	}

	member := make(map[uuid.UUID]struct{}, len(departmentIDs))
	for _, id := range departmentIDs {
		member[id] = struct{}{}
	}

	var best models.AccessLevel
	for i := range grants {
		g := &grants[i]
		if g.OrderID != orderID || !g.AccessLevel.IsValid() || !g.IsEffectiveAt(now) {
			continue
		}
		if _, ok := member[g.DepartmentID]; !ok {
			continue
		}
		if g.AccessLevel > best {
			best = g.AccessLevel
		}
	}
	return best, best != 0
}

func hasActiveException(exceptions []models.UserException, orderID, userID uuid.UUID, now time.Time) bool {
	for i := range exceptions {
		e := &exceptions[i]
		if e.OrderID == orderID && e.UserID == userID && e.IsActiveAt(now) {
			return true
		}
	}
	return false
}
