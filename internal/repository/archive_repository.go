package repository

import (
	"context"
	"time"

	"order-access-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ArchiveRepository handles database operations for archived orders
type ArchiveRepository struct {
	db *gorm.DB
}

// NewArchiveRepository creates a new ArchiveRepository
func NewArchiveRepository(db *gorm.DB) *ArchiveRepository {
	return &ArchiveRepository{db: db}
}

// ArchiveFilter narrows archive listings
type ArchiveFilter struct {
	OwnerID      *uuid.UUID
	OnlyPending  bool // not yet restored
	DepartmentID *uuid.UUID
}

// Create inserts an archive snapshot
func (r *ArchiveRepository) Create(ctx context.Context, archived *models.ArchivedOrder) error {
	return r.db.WithContext(ctx).Create(archived).Error
}

// GetByID retrieves an archive row
func (r *ArchiveRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ArchivedOrder, error) {
	var archived models.ArchivedOrder
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&archived).Error
	if err != nil {
		return nil, translate(err)
	}
	return &archived, nil
}

// List returns archives newest first with the total count
func (r *ArchiveRepository) List(ctx context.Context, filter ArchiveFilter, limit, offset int) ([]models.ArchivedOrder, int64, error) {
	var archives []models.ArchivedOrder
	var total int64

	query := r.db.WithContext(ctx).Model(&models.ArchivedOrder{})
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.DepartmentID != nil {
		query = query.Where("department_id = ?", *filter.DepartmentID)
	}
	if filter.OnlyPending {
		query = query.Where("restored_at IS NULL")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("archived_at DESC").
		Order("id").
		Limit(limit).
		Offset(offset).
		Find(&archives).Error
	return archives, total, err
}

// ListByOrder returns every archive taken of one order, oldest first
func (r *ArchiveRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.ArchivedOrder, error) {
	var archives []models.ArchivedOrder
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("archived_at ASC").
		Find(&archives).Error
	return archives, err
}

// MarkRestored consumes a restorable archive. Returns false when another
// caller consumed it first.
func (r *ArchiveRepository) MarkRestored(ctx context.Context, id, restoredBy uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.ArchivedOrder{}).
		Where("id = ? AND can_be_restored = ? AND restored_at IS NULL", id, true).
		Updates(map[string]interface{}{
			"can_be_restored": false,
			"restored_at":     at,
			"restored_by":     restoredBy,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Delete physically removes an archive row
func (r *ArchiveRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ArchivedOrder{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
