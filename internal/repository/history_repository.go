package repository

import (
	"context"

	"order-access-service/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SortDirection orders history pages
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// HistoryRepository is the append-only store for order history. It exposes
// no update method; DeleteForOrder exists only for permanent deletion.
type HistoryRepository struct {
	db *gorm.DB
}

// NewHistoryRepository creates a new HistoryRepository
func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Append inserts one entry
func (r *HistoryRepository) Append(ctx context.Context, entry *models.OrderHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// List returns a page of entries ordered by performed_at, with the
// insertion id breaking ties
func (r *HistoryRepository) List(ctx context.Context, orderID uuid.UUID, direction SortDirection, limit, offset int) ([]models.OrderHistory, error) {
	var entries []models.OrderHistory

	order := "performed_at ASC, id ASC"
	if direction == SortDesc {
		order = "performed_at DESC, id DESC"
	}

	query := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order(order)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	err := query.Find(&entries).Error
	return entries, err
}

// Count returns the number of entries for an order
func (r *HistoryRepository) Count(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.OrderHistory{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	return count, err
}

// CountByAction returns the number of entries with the given action
func (r *HistoryRepository) CountByAction(ctx context.Context, orderID uuid.UUID, action models.OrderAction) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.OrderHistory{}).
		Where("order_id = ? AND action = ?", orderID, action).
		Count(&count).Error
	return count, err
}

// DeleteForOrder removes every entry of an order. Only permanent deletion
// of an archived order may call this.
func (r *HistoryRepository) DeleteForOrder(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&models.OrderHistory{}).Error
}
