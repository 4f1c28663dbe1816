package repository

import (
	"context"
	"time"

	"order-access-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GrantRepository persists direct permissions, department access and user
// exceptions. Rows are never hard-deleted while the order is live; revocation
// stamps RevokedAt and removal clears IsActive.
type GrantRepository struct {
	db *gorm.DB
}

// NewGrantRepository creates a new GrantRepository
func NewGrantRepository(db *gorm.DB) *GrantRepository {
	return &GrantRepository{db: db}
}

// --- Direct Permissions ---

// CreateDirect records a new direct permission. Older rows for the same user
// stay in place and are shadowed by the newer grant.
func (r *GrantRepository) CreateDirect(ctx context.Context, grant *models.DirectPermission) error {
	return r.db.WithContext(ctx).Create(grant).Error
}

// RevokeDirect revokes every un-revoked direct permission of the user.
// Returns ErrNotFound when there was nothing to revoke.
func (r *GrantRepository) RevokeDirect(ctx context.Context, orderID, userID, revokedBy uuid.UUID, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.DirectPermission{}).
		Where("order_id = ? AND user_id = ? AND revoked_at IS NULL", orderID, userID).
		Updates(map[string]interface{}{
			"revoked_at": at,
			"revoked_by": revokedBy,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, ErrNotFound
	}
	return result.RowsAffected, nil
}

// --- Department Access ---

// CreateDepartmentAccess records a department grant
func (r *GrantRepository) CreateDepartmentAccess(ctx context.Context, access *models.DepartmentAccess) error {
	return r.db.WithContext(ctx).Create(access).Error
}

// RevokeDepartmentAccess revokes every un-revoked grant of the department
func (r *GrantRepository) RevokeDepartmentAccess(ctx context.Context, orderID, departmentID, revokedBy uuid.UUID, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.DepartmentAccess{}).
		Where("order_id = ? AND department_id = ? AND revoked_at IS NULL", orderID, departmentID).
		Updates(map[string]interface{}{
			"revoked_at": at,
			"revoked_by": revokedBy,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, ErrNotFound
	}
	return result.RowsAffected, nil
}

// --- User Exceptions ---

// CreateException records a user exception
func (r *GrantRepository) CreateException(ctx context.Context, exception *models.UserException) error {
	return r.db.WithContext(ctx).Create(exception).Error
}

// RemoveExceptions deactivates every active exception of the user
func (r *GrantRepository) RemoveExceptions(ctx context.Context, orderID, userID, removedBy uuid.UUID, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.UserException{}).
		Where("order_id = ? AND user_id = ? AND is_active = ?", orderID, userID, true).
		Updates(map[string]interface{}{
			"is_active":  false,
			"removed_at": at,
			"removed_by": removedBy,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, ErrNotFound
	}
	return result.RowsAffected, nil
}

// --- Aggregate ---

// ListForOrder loads the live grant rows of an order: un-revoked direct and
// department grants and active exceptions. Expired rows are included; expiry
// is judged by the resolver against a single instant.
func (r *GrantRepository) ListForOrder(ctx context.Context, orderID uuid.UUID) (*models.OrderGrants, error) {
	grants := &models.OrderGrants{
		Direct:      []models.DirectPermission{},
		Departments: []models.DepartmentAccess{},
		Exceptions:  []models.UserException{},
	}

	db := r.db.WithContext(ctx)
	if err := db.Where("order_id = ? AND revoked_at IS NULL", orderID).
		Order("granted_at ASC").Order("id").
		Find(&grants.Direct).Error; err != nil {
		return nil, err
	}
	if err := db.Where("order_id = ? AND revoked_at IS NULL", orderID).
		Order("granted_at ASC").Order("id").
		Find(&grants.Departments).Error; err != nil {
		return nil, err
	}
	if err := db.Where("order_id = ? AND is_active = ?", orderID, true).
		Order("created_at ASC").Order("id").
		Find(&grants.Exceptions).Error; err != nil {
		return nil, err
	}
	return grants, nil
}

// DeleteForOrder hard-deletes every grant row of an order, including revoked ones
func (r *GrantRepository) DeleteForOrder(ctx context.Context, orderID uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("order_id = ?", orderID).Delete(&models.DirectPermission{}).Error; err != nil {
		return err
	}
	if err := db.Where("order_id = ?", orderID).Delete(&models.DepartmentAccess{}).Error; err != nil {
		return err
	}
	return db.Where("order_id = ?", orderID).Delete(&models.UserException{}).Error
}
